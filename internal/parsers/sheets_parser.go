package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/skuforge/skuforge/internal/httpclient"
	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

var sheetIDRe = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9\-_]+)`)

// SheetsParser reads a Google Sheets document through its CSV export
// endpoint, so no Sheets API credentials are needed for public sheets.
type SheetsParser struct {
	fetcher *httpclient.Fetcher
}

var _ interfaces.Parser = (*SheetsParser)(nil)

// NewSheetsParser creates a Google Sheets parser using the shared fetcher.
func NewSheetsParser(fetcher *httpclient.Fetcher) *SheetsParser {
	return &SheetsParser{fetcher: fetcher}
}

func (p *SheetsParser) Name() string {
	return "google_sheets"
}

func (p *SheetsParser) ValidateConfig(config map[string]interface{}) error {
	cfg, err := p.decode(config)
	if err != nil {
		return err
	}
	_, err = ExportURL(cfg.SheetURL, cfg.SheetName)
	return err
}

func (p *SheetsParser) Parse(ctx context.Context, config map[string]interface{}) ([]models.ParsedSupplierItem, []models.RowError, error) {
	cfg, err := p.decode(config)
	if err != nil {
		return nil, nil, err
	}

	exportURL, err := ExportURL(cfg.SheetURL, cfg.SheetName)
	if err != nil {
		return nil, nil, err
	}

	body, err := p.fetcher.Get(ctx, exportURL)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	grid, err := reader.ReadAll()
	if err != nil {
		return nil, nil, models.NewParserError("failed to read exported sheet", err)
	}

	layout, err := resolveLayout(cfg.HeaderRow, cfg.HeaderRowEnd, cfg.DataStartRow)
	if err != nil {
		return nil, nil, err
	}
	plan, err := resolveColumns(grid, layout, cfg.ColumnMapping, cfg.CharacteristicColumns)
	if err != nil {
		return nil, nil, err
	}

	items, rowErrs := buildItems(grid, layout, plan)
	return items, rowErrs, nil
}

func (p *SheetsParser) decode(config map[string]interface{}) (*SheetsParserConfig, error) {
	var cfg SheetsParserConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	if _, err := resolveLayout(cfg.HeaderRow, cfg.HeaderRowEnd, cfg.DataStartRow); err != nil {
		return nil, err
	}
	if err := validateColumnMapping(cfg.ColumnMapping); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ExportURL converts a Sheets edit URL into its CSV export form, carrying
// the sheet name so the right tab is exported.
func ExportURL(sheetURL, sheetName string) (string, error) {
	parsed, err := url.Parse(sheetURL)
	if err != nil || !strings.Contains(parsed.Host, "docs.google.com") {
		return "", models.NewValidationError("not a google sheets url", map[string]interface{}{
			"sheet_url": sheetURL,
		})
	}

	match := sheetIDRe.FindStringSubmatch(parsed.Path)
	if match == nil {
		return "", models.NewValidationError("sheet id not found in url", map[string]interface{}{
			"sheet_url": sheetURL,
		})
	}

	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/gviz/tq?tqx=out:csv&sheet=%s",
		match[1], url.QueryEscape(sheetName)), nil
}

package parsers

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// CSVParser reads a delimited price list from the uploads directory.
type CSVParser struct {
	uploadsDir string
}

var _ interfaces.Parser = (*CSVParser)(nil)

// NewCSVParser creates a CSV parser confined to uploadsDir.
func NewCSVParser(uploadsDir string) *CSVParser {
	return &CSVParser{uploadsDir: uploadsDir}
}

func (p *CSVParser) Name() string {
	return "csv"
}

// ValidateConfig checks the config without touching the filesystem.
func (p *CSVParser) ValidateConfig(config map[string]interface{}) error {
	cfg, err := p.decode(config)
	if err != nil {
		return err
	}
	_, err = resolveUploadPath(p.uploadsDir, cfg.FilePath)
	return err
}

func (p *CSVParser) Parse(ctx context.Context, config map[string]interface{}) ([]models.ParsedSupplierItem, []models.RowError, error) {
	cfg, err := p.decode(config)
	if err != nil {
		return nil, nil, err
	}

	path, err := resolveUploadPath(p.uploadsDir, cfg.FilePath)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, models.NewNotFoundError("source file not found", map[string]interface{}{
				"file_path": cfg.FilePath,
			})
		}
		return nil, nil, models.NewParserError("failed to open source file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are common in hand-edited files
	if cfg.Delimiter != "" {
		reader.Comma = rune(cfg.Delimiter[0])
	}

	grid, err := reader.ReadAll()
	if err != nil {
		return nil, nil, models.NewParserError("failed to read csv", err)
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

func (p *CSVParser) decode(config map[string]interface{}) (*CSVParserConfig, error) {
	var cfg CSVParserConfig
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

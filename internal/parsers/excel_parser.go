package parsers

import (
	"context"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// ExcelParser reads one sheet of an xlsx price list.
type ExcelParser struct {
	uploadsDir string
}

var _ interfaces.Parser = (*ExcelParser)(nil)

// NewExcelParser creates an Excel parser confined to uploadsDir.
func NewExcelParser(uploadsDir string) *ExcelParser {
	return &ExcelParser{uploadsDir: uploadsDir}
}

func (p *ExcelParser) Name() string {
	return "excel"
}

func (p *ExcelParser) ValidateConfig(config map[string]interface{}) error {
	cfg, err := p.decode(config)
	if err != nil {
		return err
	}
	_, err = resolveUploadPath(p.uploadsDir, cfg.FilePath)
	return err
}

func (p *ExcelParser) Parse(ctx context.Context, config map[string]interface{}) ([]models.ParsedSupplierItem, []models.RowError, error) {
	cfg, err := p.decode(config)
	if err != nil {
		return nil, nil, err
	}

	path, err := resolveUploadPath(p.uploadsDir, cfg.FilePath)
	if err != nil {
		return nil, nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, models.NewNotFoundError("source file not found", map[string]interface{}{
			"file_path": cfg.FilePath,
		})
	}

	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, models.NewParserError("failed to open workbook", err)
	}
	defer book.Close()

	grid, err := book.GetRows(cfg.SheetName)
	if err != nil {
		return nil, nil, models.NewParserError(
			fmt.Sprintf("failed to read sheet %q", cfg.SheetName), err)
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

func (p *ExcelParser) decode(config map[string]interface{}) (*ExcelParserConfig, error) {
	var cfg ExcelParserConfig
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

package parsers

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/skuforge/skuforge/internal/models"
)

var validate = validator.New()

// Logical columns a column_mapping may remap.
var allowedMappingKeys = map[string]bool{
	"sku":   true,
	"name":  true,
	"price": true,
}

// FileParserConfig is the common configuration for file-backed parsers.
// Row numbers are 1-based to match what users see in a spreadsheet.
type FileParserConfig struct {
	FilePath              string            `json:"file_path" validate:"required"`
	ColumnMapping         map[string]string `json:"column_mapping,omitempty"`
	CharacteristicColumns []string          `json:"characteristic_columns,omitempty"`
	HeaderRow             int               `json:"header_row,omitempty" validate:"omitempty,gte=1"`
	HeaderRowEnd          int               `json:"header_row_end,omitempty" validate:"omitempty,gte=1"`
	DataStartRow          int               `json:"data_start_row,omitempty" validate:"omitempty,gte=1"`
}

// CSVParserConfig extends the file config with CSV dialect options.
type CSVParserConfig struct {
	FileParserConfig
	Delimiter string `json:"delimiter,omitempty" validate:"omitempty,len=1"`
	Encoding  string `json:"encoding,omitempty" validate:"omitempty,oneof=utf-8 utf8"`
}

// ExcelParserConfig extends the file config with the sheet to read.
type ExcelParserConfig struct {
	FileParserConfig
	SheetName string `json:"sheet_name" validate:"required"`
}

// SheetsParserConfig configures the Google Sheets parser. The sheet is
// fetched through the CSV export endpoint, so row semantics match CSV.
type SheetsParserConfig struct {
	SheetURL              string            `json:"sheet_url" validate:"required,url"`
	SheetName             string            `json:"sheet_name" validate:"required"`
	ColumnMapping         map[string]string `json:"column_mapping,omitempty"`
	CharacteristicColumns []string          `json:"characteristic_columns,omitempty"`
	HeaderRow             int               `json:"header_row,omitempty" validate:"omitempty,gte=1"`
	HeaderRowEnd          int               `json:"header_row_end,omitempty" validate:"omitempty,gte=1"`
	DataStartRow          int               `json:"data_start_row,omitempty" validate:"omitempty,gte=2"`
}

// decodeConfig maps a raw config into a typed struct via a JSON roundtrip,
// then runs struct validation.
func decodeConfig(config map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return models.NewValidationError("config is not serializable", map[string]interface{}{
			"error": err.Error(),
		})
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return models.NewValidationError("invalid parser config", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := validate.Struct(out); err != nil {
		return models.NewValidationError("parser config failed validation", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return nil
}

// rowLayout is the resolved header/data row numbers after defaults.
type rowLayout struct {
	HeaderRow    int
	HeaderRowEnd int
	DataStartRow int
}

// resolveLayout applies defaults and cross-field rules: headers may span
// several rows, and data must start strictly after the last header row.
func resolveLayout(headerRow, headerRowEnd, dataStartRow int) (rowLayout, error) {
	if headerRow == 0 {
		headerRow = 1
	}
	if headerRowEnd == 0 {
		headerRowEnd = headerRow
	}
	if headerRowEnd < headerRow {
		return rowLayout{}, models.NewValidationError("header_row_end must be >= header_row", map[string]interface{}{
			"header_row":     headerRow,
			"header_row_end": headerRowEnd,
		})
	}
	if dataStartRow == 0 {
		dataStartRow = headerRowEnd + 1
	}
	if dataStartRow <= headerRowEnd {
		return rowLayout{}, models.NewValidationError("data_start_row must be after the last header row", map[string]interface{}{
			"header_row_end": headerRowEnd,
			"data_start_row": dataStartRow,
		})
	}
	return rowLayout{HeaderRow: headerRow, HeaderRowEnd: headerRowEnd, DataStartRow: dataStartRow}, nil
}

// validateColumnMapping restricts mapping keys to the logical columns.
func validateColumnMapping(mapping map[string]string) error {
	for key, header := range mapping {
		if !allowedMappingKeys[key] {
			return models.NewValidationError(
				fmt.Sprintf("column_mapping key %q is not allowed", key),
				map[string]interface{}{"allowed": []string{"sku", "name", "price"}})
		}
		if strings.TrimSpace(header) == "" {
			return models.NewValidationError(
				fmt.Sprintf("column_mapping value for %q is empty", key), nil)
		}
	}
	return nil
}

// resolveUploadPath confines file_path to the uploads directory. A path
// that escapes the directory after cleaning is treated as an attack.
func resolveUploadPath(uploadsDir, filePath string) (string, error) {
	if filepath.IsAbs(filePath) {
		rel, err := filepath.Rel(uploadsDir, filePath)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", models.NewSecurityError("file path escapes uploads directory", map[string]interface{}{
				"file_path": filePath,
			})
		}
		return filepath.Clean(filePath), nil
	}

	full := filepath.Join(uploadsDir, filePath)
	rel, err := filepath.Rel(uploadsDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", models.NewSecurityError("file path escapes uploads directory", map[string]interface{}{
			"file_path": filePath,
		})
	}
	return full, nil
}

package parsers

import (
	"context"
	"encoding/json"

	"github.com/skuforge/skuforge/internal/httpclient"
	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// StubParser exercises the pipeline without a real source. It is the only
// parser that accepts an empty config; when the config carries an "items"
// list those rows are emitted verbatim.
type StubParser struct{}

var _ interfaces.Parser = (*StubParser)(nil)

func NewStubParser() *StubParser {
	return &StubParser{}
}

func (p *StubParser) Name() string {
	return "stub"
}

func (p *StubParser) ValidateConfig(config map[string]interface{}) error {
	if config == nil {
		return nil
	}
	if raw, ok := config["items"]; ok {
		if _, isList := raw.([]interface{}); !isList {
			return models.NewValidationError("stub items must be a list", nil)
		}
	}
	return nil
}

func (p *StubParser) Parse(ctx context.Context, config map[string]interface{}) ([]models.ParsedSupplierItem, []models.RowError, error) {
	if config == nil {
		return nil, nil, nil
	}
	raw, ok := config["items"]
	if !ok {
		return nil, nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, nil, models.NewValidationError("stub items are not serializable", nil)
	}
	var items []models.ParsedSupplierItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, nil, models.NewValidationError("stub items are malformed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var valid []models.ParsedSupplierItem
	var rowErrs []models.RowError
	for i := range items {
		if err := items[i].Validate(); err != nil {
			rowErrs = append(rowErrs, models.RowError{
				RowNumber: items[i].RowNumber,
				Err:       err,
			})
			continue
		}
		valid = append(valid, items[i])
	}
	return valid, rowErrs, nil
}

// RegisterBuiltins wires the standard parser set into a registry.
func RegisterBuiltins(registry *Registry, uploadsDir string, fetcher *httpclient.Fetcher) error {
	for name, factory := range map[string]Factory{
		"stub":          func() interfaces.Parser { return NewStubParser() },
		"csv":           func() interfaces.Parser { return NewCSVParser(uploadsDir) },
		"excel":         func() interfaces.Parser { return NewExcelParser(uploadsDir) },
		"google_sheets": func() interfaces.Parser { return NewSheetsParser(fetcher) },
	} {
		if err := registry.Register(name, factory); err != nil {
			return err
		}
	}
	return nil
}

package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParsedSupplierItem is the canonical in-flight row emitted by any parser
// before it touches the database.
type ParsedSupplierItem struct {
	SupplierSKU     string                 `json:"supplier_sku"`
	Name            string                 `json:"name"`
	Price           decimal.Decimal        `json:"price"`
	PriceOpt        *decimal.Decimal       `json:"price_opt,omitempty"`
	PriceRRC        *decimal.Decimal       `json:"price_rrc,omitempty"`
	InStock         bool                   `json:"in_stock"`
	Characteristics map[string]interface{} `json:"characteristics,omitempty"`
	RowNumber       int                    `json:"row_number,omitempty"`
}

// Validate enforces the parsed-item contract: non-empty sku and name,
// non-negative prices. Zero price is accepted.
func (p *ParsedSupplierItem) Validate() error {
	if strings.TrimSpace(p.SupplierSKU) == "" {
		return NewValidationError("supplier_sku is empty", map[string]interface{}{
			"row": p.RowNumber,
		})
	}
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name is empty", map[string]interface{}{
			"sku": p.SupplierSKU,
			"row": p.RowNumber,
		})
	}
	if p.Price.IsNegative() {
		return NewValidationError("price is negative", map[string]interface{}{
			"sku":   p.SupplierSKU,
			"row":   p.RowNumber,
			"price": p.Price.String(),
		})
	}
	if p.PriceOpt != nil && p.PriceOpt.IsNegative() {
		return NewValidationError("price_opt is negative", map[string]interface{}{
			"sku": p.SupplierSKU,
			"row": p.RowNumber,
		})
	}
	if p.PriceRRC != nil && p.PriceRRC.IsNegative() {
		return NewValidationError("price_rrc is negative", map[string]interface{}{
			"sku": p.SupplierSKU,
			"row": p.RowNumber,
		})
	}
	return nil
}

// RowError records a dropped source row for the parsing log. Parsers never
// fail on a single bad row; they collect and continue.
type RowError struct {
	RowNumber int
	RowData   string
	Err       error
}

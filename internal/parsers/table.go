package parsers

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/skuforge/skuforge/internal/models"
)

// Header aliases recognized when no explicit column_mapping is given.
var headerAliases = map[string][]string{
	"sku":       {"sku", "supplier_sku", "article", "code"},
	"name":      {"name", "product_name", "title", "description"},
	"price":     {"price", "current_price"},
	"price_opt": {"price_opt", "opt_price", "wholesale_price"},
	"price_rrc": {"price_rrc", "rrc", "retail_price"},
	"in_stock":  {"in_stock", "stock", "availability", "available", "qty", "quantity"},
}

// columnPlan maps logical fields and characteristic columns to indexes
// in the source grid.
type columnPlan struct {
	fields          map[string]int // logical field -> column index
	characteristics map[string]int // characteristic name -> column index
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// resolveColumns builds the column plan from the header span. Headers may
// span several rows; for each column the last non-empty cell in the span
// wins. Missing required columns fail the whole parse.
func resolveColumns(grid [][]string, layout rowLayout, mapping map[string]string, charCols []string) (*columnPlan, error) {
	if len(grid) < layout.HeaderRowEnd {
		return nil, models.NewParserError("source has fewer rows than the header span", nil)
	}

	headerIndex := make(map[string]int)
	for row := layout.HeaderRow - 1; row < layout.HeaderRowEnd; row++ {
		for col, cell := range grid[row] {
			if h := normalizeHeader(cell); h != "" {
				headerIndex[h] = col
			}
		}
	}

	plan := &columnPlan{
		fields:          make(map[string]int),
		characteristics: make(map[string]int),
	}

	for field, aliases := range headerAliases {
		if mapped, ok := mapping[field]; ok {
			if col, found := headerIndex[normalizeHeader(mapped)]; found {
				plan.fields[field] = col
			}
			continue
		}
		for _, alias := range aliases {
			if col, found := headerIndex[alias]; found {
				plan.fields[field] = col
				break
			}
		}
	}

	for _, required := range []string{"sku", "name", "price"} {
		if _, ok := plan.fields[required]; !ok {
			return nil, models.NewValidationError("required column not found in header", map[string]interface{}{
				"column":  required,
				"headers": headerKeys(headerIndex),
			})
		}
	}

	for _, charCol := range charCols {
		if col, found := headerIndex[normalizeHeader(charCol)]; found {
			plan.characteristics[strings.TrimSpace(charCol)] = col
		}
	}

	return plan, nil
}

func headerKeys(index map[string]int) []string {
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	return keys
}

// buildItems converts data rows into parsed items. Rows that violate the
// parsed-item contract become RowErrors and are dropped, never a parse
// failure.
func buildItems(grid [][]string, layout rowLayout, plan *columnPlan) ([]models.ParsedSupplierItem, []models.RowError) {
	var items []models.ParsedSupplierItem
	var rowErrs []models.RowError

	for row := layout.DataStartRow - 1; row < len(grid); row++ {
		cells := grid[row]
		rowNumber := row + 1

		if isBlankRow(cells) {
			continue
		}

		item, err := buildItem(cells, rowNumber, plan)
		if err != nil {
			rowErrs = append(rowErrs, models.RowError{
				RowNumber: rowNumber,
				RowData:   strings.Join(cells, ";"),
				Err:       err,
			})
			continue
		}
		items = append(items, item)
	}

	return items, rowErrs
}

func buildItem(cells []string, rowNumber int, plan *columnPlan) (models.ParsedSupplierItem, error) {
	item := models.ParsedSupplierItem{
		SupplierSKU: strings.TrimSpace(cellAt(cells, plan.fields["sku"])),
		Name:        strings.TrimSpace(cellAt(cells, plan.fields["name"])),
		RowNumber:   rowNumber,
		InStock:     true,
	}

	price, err := parsePrice(cellAt(cells, plan.fields["price"]))
	if err != nil {
		return item, err
	}
	item.Price = price

	if col, ok := plan.fields["price_opt"]; ok {
		if p, err := parseOptionalPrice(cellAt(cells, col)); err == nil {
			item.PriceOpt = p
		}
	}
	if col, ok := plan.fields["price_rrc"]; ok {
		if p, err := parseOptionalPrice(cellAt(cells, col)); err == nil {
			item.PriceRRC = p
		}
	}
	if col, ok := plan.fields["in_stock"]; ok {
		item.InStock = parseStock(cellAt(cells, col))
	}

	if len(plan.characteristics) > 0 {
		item.Characteristics = make(map[string]interface{}, len(plan.characteristics))
		for name, col := range plan.characteristics {
			if v := strings.TrimSpace(cellAt(cells, col)); v != "" {
				item.Characteristics[name] = v
			}
		}
	}

	if err := item.Validate(); err != nil {
		return item, err
	}
	return item, nil
}

func cellAt(cells []string, col int) string {
	if col < 0 || col >= len(cells) {
		return ""
	}
	return cells[col]
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parsePrice accepts "1 234,56", "1234.56", and plain integers. Zero is a
// legal price.
func parsePrice(raw string) (decimal.Decimal, error) {
	cleaned := cleanNumeric(raw)
	if cleaned == "" {
		return decimal.Zero, models.NewValidationError("price is empty", nil)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, models.NewValidationError("price is not numeric", map[string]interface{}{
			"value": raw,
		})
	}
	return d.Round(2), nil
}

func parseOptionalPrice(raw string) (*decimal.Decimal, error) {
	cleaned := cleanNumeric(raw)
	if cleaned == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil, err
	}
	d = d.Round(2)
	return &d, nil
}

func cleanNumeric(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	return cleaned
}

var falseyStock = map[string]bool{
	"":             true,
	"0":            true,
	"false":        true,
	"no":           true,
	"n":            true,
	"-":            true,
	"out":          true,
	"out of stock": true,
}

// parseStock treats quantities and the usual truthy markers as in stock.
func parseStock(raw string) bool {
	v := strings.ToLower(strings.TrimSpace(raw))
	if falseyStock[v] {
		return false
	}
	if n, err := strconv.ParseFloat(cleanNumeric(v), 64); err == nil {
		return n > 0
	}
	return true
}

package parsers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

func TestRegistryRegisterAndNew(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("stub", func() interfaces.Parser { return NewStubParser() }))

	p, err := r.New("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())

	err = r.Register("stub", func() interfaces.Parser { return NewStubParser() })
	require.Error(t, err, "duplicate registration is a wiring bug")
}

func TestRegistryUnknownParser(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("csv", func() interfaces.Parser { return NewCSVParser(t.TempDir()) }))

	_, err := r.New("exel")
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindParser, models.KindOf(err))
	assert.Contains(t, err.Error(), "csv", "the error lists what is available")
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, t.TempDir(), nil))
	assert.Equal(t, []string{"csv", "excel", "google_sheets", "stub"}, r.Names())
}

func TestStubParserEmitsConfiguredItems(t *testing.T) {
	p := NewStubParser()
	ctx := context.Background()

	items, rowErrs, err := p.Parse(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, rowErrs)

	items, rowErrs, err = p.Parse(ctx, map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"supplier_sku": "A-1", "name": "Widget", "price": "10.50", "in_stock": true},
			map[string]interface{}{"supplier_sku": "", "name": "Broken", "price": "1"},
		},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A-1", items[0].SupplierSKU)
	assert.Equal(t, "10.5", items[0].Price.String())
	require.Len(t, rowErrs, 1)
	assert.Equal(t, models.ErrorKindValidation, models.KindOf(rowErrs[0].Err))
}

func TestStubParserValidateConfig(t *testing.T) {
	p := NewStubParser()
	require.NoError(t, p.ValidateConfig(nil))
	require.NoError(t, p.ValidateConfig(map[string]interface{}{}))
	require.Error(t, p.ValidateConfig(map[string]interface{}{"items": "not a list"}))
}

package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1234.56", "1234.56"},
		{"1 234,56", "1234.56"},
		{"1 234,56", "1234.56"}, // non-breaking space
		{"0", "0"},
		{"999", "999"},
		{"10.999", "11"}, // rounded to 2 decimal places
	}
	for _, tc := range tests {
		got, err := parsePrice(tc.raw)
		require.NoError(t, err, "raw %q", tc.raw)
		assert.Equal(t, tc.want, got.String(), "raw %q", tc.raw)
	}

	_, err := parsePrice("")
	require.Error(t, err)
	_, err = parsePrice("n/a")
	require.Error(t, err)
}

func TestParseStock(t *testing.T) {
	for _, raw := range []string{"5", "1", "yes", "in stock", "true", "12.5", "TRUE", "много"} {
		assert.True(t, parseStock(raw), "raw %q", raw)
	}
	for _, raw := range []string{"", "0", "false", "no", "n", "-", "out", "Out Of Stock", "0.0"} {
		assert.False(t, parseStock(raw), "raw %q", raw)
	}
}

func TestResolveColumnsLastNonEmptyHeaderWins(t *testing.T) {
	grid := [][]string{
		{"sku", "name", "old price"},
		{"", "", "price"},
		{"A-1", "Widget", "10"},
	}
	layout, err := resolveLayout(1, 2, 3)
	require.NoError(t, err)

	plan, err := resolveColumns(grid, layout, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.fields["sku"])
	assert.Equal(t, 2, plan.fields["price"])
}

func TestResolveColumnsHeaderSpanBeyondGrid(t *testing.T) {
	grid := [][]string{{"sku", "name", "price"}}
	layout, err := resolveLayout(1, 3, 4)
	require.NoError(t, err)

	_, err = resolveColumns(grid, layout, nil, nil)
	require.Error(t, err)
}

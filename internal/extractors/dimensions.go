package extractors

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/skuforge/skuforge/internal/interfaces"
)

const (
	maxWeightKg     = 10000.0
	maxDimensionCm  = 100000.0
	gramsPerKg      = 1000.0
	mmPerCentimeter = 10.0
)

var (
	weightKgRe = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*kg\b`)
	weightGRe  = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*g\b`)
	// "120 x 60 x 75 cm" or "1200x600x750 mm"
	dimensionsRe = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*[x×]\s*(\d+(?:[.,]\d+)?)\s*[x×]\s*(\d+(?:[.,]\d+)?)\s*(cm|mm)\b`)
)

// DimensionsExtractor pulls weight and physical dimensions out of free
// text. It owns the keys weight_kg and dimensions_cm.
type DimensionsExtractor struct{}

var _ interfaces.Extractor = (*DimensionsExtractor)(nil)

func NewDimensionsExtractor() *DimensionsExtractor {
	return &DimensionsExtractor{}
}

func (e *DimensionsExtractor) Name() string {
	return "dimensions"
}

func (e *DimensionsExtractor) Extract(text string) map[string]interface{} {
	if IsSentinel(text) {
		return nil
	}

	out := make(map[string]interface{})

	if kg, ok := extractWeight(text); ok && kg >= 0 && kg <= maxWeightKg {
		out["weight_kg"] = kg
	}

	if match := dimensionsRe.FindStringSubmatch(text); match != nil {
		scale := 1.0
		if strings.EqualFold(match[4], "mm") {
			scale = 1.0 / mmPerCentimeter
		}
		length, okL := parseFloat(match[1])
		width, okW := parseFloat(match[2])
		height, okH := parseFloat(match[3])
		if okL && okW && okH {
			length, width, height = length*scale, width*scale, height*scale
			if inDimensionRange(length) && inDimensionRange(width) && inDimensionRange(height) {
				out["dimensions_cm"] = map[string]interface{}{
					"length": length,
					"width":  width,
					"height": height,
				}
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func extractWeight(text string) (float64, bool) {
	if match := weightKgRe.FindStringSubmatch(text); match != nil {
		return parseFloat(match[1])
	}
	if match := weightGRe.FindStringSubmatch(text); match != nil {
		if g, ok := parseFloat(match[1]); ok {
			return g / gramsPerKg, true
		}
	}
	return 0, false
}

func parseFloat(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func inDimensionRange(v float64) bool {
	return v >= 0 && v <= maxDimensionCm
}

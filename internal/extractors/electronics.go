package extractors

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/skuforge/skuforge/internal/interfaces"
)

// Feature value bounds; out-of-range extractions are dropped silently.
const (
	maxVoltage    = 10000
	maxPowerWatts = 100000
	maxStorageGB  = 100000
	maxMemoryGB   = 1000
)

var (
	voltageRe = regexp.MustCompile(`(?i)\b(\d+)\s*(?:v|volt|volts)\b`)
	powerRe   = regexp.MustCompile(`(?i)\b(\d+)\s*(?:w|watt|watts)\b`)
	memoryRe  = regexp.MustCompile(`(?i)\b(\d+)\s*gb\s*(?:ram|ddr\d*|memory)\b`)
	storageRe = regexp.MustCompile(`(?i)\b(\d+)\s*(gb|tb)\s*(?:ssd|hdd|nvme|emmc|storage)\b`)
)

// ElectronicsExtractor pulls voltage, power, storage, and memory figures
// out of free-text product names and descriptions. It owns the keys
// voltage, power_watts, storage_gb, memory_gb.
type ElectronicsExtractor struct{}

var _ interfaces.Extractor = (*ElectronicsExtractor)(nil)

func NewElectronicsExtractor() *ElectronicsExtractor {
	return &ElectronicsExtractor{}
}

func (e *ElectronicsExtractor) Name() string {
	return "electronics"
}

func (e *ElectronicsExtractor) Extract(text string) map[string]interface{} {
	if IsSentinel(text) {
		return nil
	}

	out := make(map[string]interface{})

	if v, ok := firstInt(voltageRe, text); ok && v >= 0 && v <= maxVoltage {
		out["voltage"] = v
	}
	if w, ok := firstInt(powerRe, text); ok && w >= 0 && w <= maxPowerWatts {
		out["power_watts"] = w
	}
	if m, ok := firstInt(memoryRe, text); ok && m >= 0 && m <= maxMemoryGB {
		out["memory_gb"] = m
	}
	if match := storageRe.FindStringSubmatch(text); match != nil {
		if gb, err := strconv.Atoi(match[1]); err == nil {
			if strings.EqualFold(match[2], "tb") {
				gb *= 1000
			}
			if gb >= 0 && gb <= maxStorageGB {
				out["storage_gb"] = gb
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func firstInt(re *regexp.Regexp, text string) (int, bool) {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

package extractors

import (
	"fmt"
	"strings"
	"sync"

	"github.com/skuforge/skuforge/internal/interfaces"
)

// Sentinel values treated as missing wherever a feature value is read.
var sentinelValues = map[string]bool{
	"":    true,
	"tbd": true,
	"n/a": true,
	"na":  true,
	"-":   true,
}

// IsSentinel reports whether a raw text value means "no data".
func IsSentinel(v string) bool {
	return sentinelValues[strings.ToLower(strings.TrimSpace(v))]
}

// Pipeline runs registered extractors over free text and merges their
// partial characteristic maps. Extractors own disjoint keys, so merge
// order does not matter; the pipeline is deterministic and idempotent.
type Pipeline struct {
	mu         sync.RWMutex
	extractors map[string]interfaces.Extractor
}

// NewPipeline creates an empty extractor pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{extractors: make(map[string]interfaces.Extractor)}
}

// NewDefaultPipeline creates a pipeline with the built-in extractor set.
func NewDefaultPipeline() *Pipeline {
	p := NewPipeline()
	// Built-ins own disjoint keys, so registration cannot fail.
	_ = p.Register(NewElectronicsExtractor())
	_ = p.Register(NewDimensionsExtractor())
	return p
}

// Register adds an extractor. Duplicate names are a wiring bug.
func (p *Pipeline) Register(e interfaces.Extractor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := e.Name()
	if _, exists := p.extractors[name]; exists {
		return fmt.Errorf("extractor %q already registered", name)
	}
	p.extractors[name] = e
	return nil
}

// Names lists registered extractor names.
func (p *Pipeline) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.extractors))
	for name := range p.extractors {
		names = append(names, name)
	}
	return names
}

// Extract runs every extractor over the text and merges the partial maps.
func (p *Pipeline) Extract(text string) map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	merged := make(map[string]interface{})
	for _, e := range p.extractors {
		for key, value := range e.Extract(text) {
			merged[key] = value
		}
	}
	return merged
}

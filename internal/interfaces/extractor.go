package interfaces

// Extractor derives structured characteristics from free text. Extractors
// own disjoint keys, so running any set of them never conflicts, and each
// is deterministic: same text, same output.
type Extractor interface {
	Name() string
	Extract(text string) map[string]interface{}
}

package models

// MatchDecision classifies the matcher's output.
type MatchDecision string

const (
	DecisionMatched       MatchDecision = "matched"
	DecisionPotential     MatchDecision = "potential"
	DecisionNoMatch       MatchDecision = "no_match"
	DecisionNeedsCategory MatchDecision = "needs_category"
)

// MatchResult is the ranked candidate set for one supplier-item name.
// Candidates are sorted descending by score, ties broken by ascending
// product id, truncated to the configured top N.
type MatchResult struct {
	Status     MatchDecision     `json:"status"`
	BestScore  float64           `json:"best_score"`
	Candidates []ReviewCandidate `json:"candidates"`
}

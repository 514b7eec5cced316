package matching

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/skuforge/skuforge/internal/models"
)

// Score thresholds on the 0..100 scale. AutoThreshold and above links
// automatically; ReviewThreshold and above queues for review.
type Thresholds struct {
	Auto   float64
	Review float64
}

// DefaultThresholds mirrors the configuration defaults (0.95 / 0.70
// expressed on the score scale).
var DefaultThresholds = Thresholds{Auto: 95.0, Review: 70.0}

// Matcher scores supplier-item names against candidate product names.
// It is stateless and deterministic given its inputs.
type Matcher struct {
	thresholds Thresholds
	topN       int
}

// NewMatcher creates a matcher. topN bounds the candidate list attached
// to review rows; values below 5 are raised to 5.
func NewMatcher(thresholds Thresholds, topN int) *Matcher {
	if topN < 5 {
		topN = 5
	}
	return &Matcher{thresholds: thresholds, topN: topN}
}

// Match scores query against every candidate and classifies the best
// score. An item with no category never gets here; callers short-circuit
// to needs_category first.
func (m *Matcher) Match(query string, candidates []models.ProductRef) models.MatchResult {
	normalized := Normalize(query)
	if normalized == "" || len(candidates) == 0 {
		return models.MatchResult{Status: models.DecisionNoMatch}
	}

	scored := make([]models.ReviewCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, models.ReviewCandidate{
			ProductID: c.ID,
			Name:      c.Name,
			Score:     TokenSortRatio(normalized, Normalize(c.Name)),
		})
	}

	// Descending by score; equal scores resolve by ascending product id so
	// repeated runs pick the same winner.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ProductID.String() < scored[j].ProductID.String()
	})

	best := scored[0].Score
	result := models.MatchResult{BestScore: best}

	switch {
	case best >= m.thresholds.Auto:
		result.Status = models.DecisionMatched
		result.Candidates = scored[:1]
	case best >= m.thresholds.Review:
		result.Status = models.DecisionPotential
		result.Candidates = m.reviewBand(scored)
	default:
		result.Status = models.DecisionNoMatch
	}
	return result
}

// reviewBand keeps candidates at or above the review threshold, capped
// at topN.
func (m *Matcher) reviewBand(scored []models.ReviewCandidate) []models.ReviewCandidate {
	band := make([]models.ReviewCandidate, 0, m.topN)
	for _, c := range scored {
		if c.Score < m.thresholds.Review {
			break
		}
		band = append(band, c)
		if len(band) == m.topN {
			break
		}
	}
	return band
}

// Normalize lowercases, strips punctuation, and collapses whitespace so
// "Dell XPS-13 (2024)" and "dell xps 13 2024" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// TokenSortRatio is a token-aware similarity in [0,100]: both inputs are
// tokenized and sorted before a Levenshtein ratio, so word order does not
// matter.
func TokenSortRatio(a, b string) float64 {
	sortedA := sortTokens(a)
	sortedB := sortTokens(b)

	if sortedA == sortedB {
		return 100.0
	}
	if sortedA == "" || sortedB == "" {
		return 0.0
	}

	distance := levenshtein.ComputeDistance(sortedA, sortedB)
	longest := len([]rune(sortedA))
	if l := len([]rune(sortedB)); l > longest {
		longest = l
	}
	return (1.0 - float64(distance)/float64(longest)) * 100.0
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

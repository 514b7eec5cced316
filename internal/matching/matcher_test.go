package matching

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuforge/skuforge/internal/models"
)

func refs(names ...string) []models.ProductRef {
	out := make([]models.ProductRef, 0, len(names))
	for i, name := range names {
		id := uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", i+1))
		out = append(out, models.ProductRef{ID: id, Name: name})
	}
	return out
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dell XPS-13 (2024)", "dell xps 13 2024"},
		{"  dell   xps 13  2024 ", "dell xps 13 2024"},
		{"DELL XPS 13 2024", "dell xps 13 2024"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestTokenSortRatio(t *testing.T) {
	// Word order never matters.
	assert.Equal(t, 100.0, TokenSortRatio("xps 13 dell", "dell xps 13"))
	assert.Equal(t, 100.0, TokenSortRatio("dell xps 13", "dell xps 13"))
	assert.Equal(t, 0.0, TokenSortRatio("", "dell xps 13"))
	assert.Equal(t, 0.0, TokenSortRatio("dell", ""))

	partial := TokenSortRatio("dell xps 13", "dell xps 15")
	assert.Greater(t, partial, 80.0)
	assert.Less(t, partial, 100.0)

	unrelated := TokenSortRatio("dell xps 13", "hp deskjet ink")
	assert.Less(t, unrelated, 50.0)
}

func TestMatcher_AutoThresholdBoundary(t *testing.T) {
	candidates := refs("dell xps 13")

	// An exact normalized match scores 100 and links automatically.
	m := NewMatcher(DefaultThresholds, 5)
	result := m.Match("Dell XPS-13", candidates)
	assert.Equal(t, models.DecisionMatched, result.Status)
	assert.Equal(t, 100.0, result.BestScore)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, candidates[0].ID, result.Candidates[0].ProductID)

	// Exactly at the auto threshold still auto-links; strictly below
	// falls into the review band.
	score := TokenSortRatio(Normalize("dell xps 13"), Normalize("dell xps 13 pro"))
	atBoundary := NewMatcher(Thresholds{Auto: score, Review: 70}, 5)
	assert.Equal(t, models.DecisionMatched, atBoundary.Match("dell xps 13", refs("dell xps 13 pro")).Status)

	aboveBoundary := NewMatcher(Thresholds{Auto: score + 0.001, Review: 70}, 5)
	assert.Equal(t, models.DecisionPotential, aboveBoundary.Match("dell xps 13", refs("dell xps 13 pro")).Status)
}

func TestMatcher_ReviewThresholdBoundary(t *testing.T) {
	query := "dell xps 13"
	candidate := "dell xps 15 plus"
	score := TokenSortRatio(Normalize(query), Normalize(candidate))
	require.Greater(t, score, 0.0)
	require.Less(t, score, 95.0)

	// Exactly at the review threshold queues for review.
	at := NewMatcher(Thresholds{Auto: 95, Review: score}, 5)
	result := at.Match(query, refs(candidate))
	assert.Equal(t, models.DecisionPotential, result.Status)
	assert.NotEmpty(t, result.Candidates)

	// Strictly below is no match at all.
	above := NewMatcher(Thresholds{Auto: 95, Review: score + 0.001}, 5)
	result = above.Match(query, refs(candidate))
	assert.Equal(t, models.DecisionNoMatch, result.Status)
	assert.Empty(t, result.Candidates)
}

func TestMatcher_TieBreakByProductID(t *testing.T) {
	// Two identical candidate names: the lower product id wins, every run.
	candidates := refs("dell xps 13", "dell xps 13")
	m := NewMatcher(Thresholds{Auto: 95, Review: 70}, 5)

	for i := 0; i < 10; i++ {
		result := m.Match("dell xps 13", candidates)
		require.Equal(t, models.DecisionMatched, result.Status)
		assert.Equal(t, candidates[0].ID, result.Candidates[0].ProductID)
	}
}

func TestMatcher_ReviewBandCapsAtTopN(t *testing.T) {
	names := []string{
		"dell xps 13 a", "dell xps 13 b", "dell xps 13 c",
		"dell xps 13 d", "dell xps 13 e", "dell xps 13 f",
		"dell xps 13 g",
	}
	m := NewMatcher(Thresholds{Auto: 99.9, Review: 50}, 5)
	result := m.Match("dell xps 13", refs(names...))

	require.Equal(t, models.DecisionPotential, result.Status)
	assert.Len(t, result.Candidates, 5)
	for i := 1; i < len(result.Candidates); i++ {
		assert.GreaterOrEqual(t, result.Candidates[i-1].Score, result.Candidates[i].Score)
	}
}

func TestMatcher_TopNFloor(t *testing.T) {
	m := NewMatcher(DefaultThresholds, 1)
	assert.Equal(t, 5, m.topN)
}

func TestMatcher_EmptyInputs(t *testing.T) {
	m := NewMatcher(DefaultThresholds, 5)

	result := m.Match("", refs("dell xps 13"))
	assert.Equal(t, models.DecisionNoMatch, result.Status)

	result = m.Match("dell xps 13", nil)
	assert.Equal(t, models.DecisionNoMatch, result.Status)

	// Pure punctuation normalizes to nothing.
	result = m.Match("()---!!", refs("dell xps 13"))
	assert.Equal(t, models.DecisionNoMatch, result.Status)
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/research-orchestrator/internal/model"
)

func TestCompletionScoreMonotonic(t *testing.T) {
	t.Parallel()

	policy := DefaultScorePolicy()
	thresholds := model.DefaultThresholds()

	prev := -1.0
	for n := 0; n <= 8; n++ {
		cov := Coverage{Features: n, Competitors: n, UseCases: n, TechStack: n}
		score := policy.CompletionScore(cov, thresholds)
		assert.GreaterOrEqual(t, score, prev, "more coverage must never decrease the score (n=%d)", n)
		assert.LessOrEqual(t, score, 1.0)
		prev = score
	}
	assert.Equal(t, 1.0, prev, "full coverage saturates at 1")
}

func TestCompletionScoreClampsOverage(t *testing.T) {
	t.Parallel()

	policy := DefaultScorePolicy()
	thresholds := model.DefaultThresholds()

	full := policy.CompletionScore(Coverage{Features: 5, Competitors: 3, UseCases: 3, TechStack: 3}, thresholds)
	over := policy.CompletionScore(Coverage{Features: 50, Competitors: 30, UseCases: 30, TechStack: 30}, thresholds)
	assert.Equal(t, full, over)
}

func TestEvaluateGateInsufficientResults(t *testing.T) {
	t.Parallel()

	state := gatheredState("industrial IoT platform")
	state.SearchResults = state.SearchResults[:3]

	decision := EvaluateGate(state, DefaultScorePolicy())
	assert.False(t, decision.Advance)
	assert.Equal(t, "insufficient search results", decision.Reason)
}

func TestEvaluateGateLowScoreLoopsBack(t *testing.T) {
	t.Parallel()

	state := gatheredState("industrial IoT platform")
	state.ExtractedContent = nil // no signals at all

	decision := EvaluateGate(state, DefaultScorePolicy())
	assert.False(t, decision.Advance)
	assert.Equal(t, "completion score below threshold", decision.Reason)
	assert.Zero(t, decision.Score)
}

func TestEvaluateGateCountsPassesNotQueries(t *testing.T) {
	t.Parallel()

	state := gatheredState("industrial IoT platform")
	state.Thresholds.MinIterations = 2
	state.SearchIterations = 1
	state.TotalSearches = 40 // many queries in a single pass must not satisfy the floor

	decision := EvaluateGate(state, DefaultScorePolicy())
	assert.False(t, decision.Advance)
	assert.Equal(t, "below minimum search iterations", decision.Reason)
}

func TestEvaluateGateAdvancesWhenMet(t *testing.T) {
	t.Parallel()

	state := gatheredState("industrial IoT platform")
	decision := EvaluateGate(state, DefaultScorePolicy())
	assert.True(t, decision.Advance, "reason=%s score=%f", decision.Reason, decision.Score)
	assert.GreaterOrEqual(t, decision.Score, state.Thresholds.CompletionScore)
}

func TestEvaluateGateRetryBudgetWins(t *testing.T) {
	t.Parallel()

	state := gatheredState("industrial IoT platform")
	state.ExtractedContent = nil
	state.SearchResults = nil
	state.RetryCount = state.MaxRetries

	decision := EvaluateGate(state, DefaultScorePolicy())
	assert.True(t, decision.Advance)
	assert.Equal(t, "retry budget exhausted", decision.Reason)
}

func TestWeakestDimension(t *testing.T) {
	t.Parallel()

	thresholds := model.DefaultThresholds()

	tests := []struct {
		name string
		cov  Coverage
		want model.Dimension
	}{
		{"no coverage defaults to features", Coverage{}, model.DimensionFeatures},
		{"competitors thinnest", Coverage{Features: 5, Competitors: 0, UseCases: 3, TechStack: 3}, model.DimensionCompetitors},
		{"use cases map to reviews", Coverage{Features: 5, Competitors: 3, UseCases: 0, TechStack: 3}, model.DimensionReviews},
		{"tech maps to technical", Coverage{Features: 5, Competitors: 3, UseCases: 3, TechStack: 1}, model.DimensionTechnical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, weakestDimension(tt.cov, thresholds))
		})
	}
}

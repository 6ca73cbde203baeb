package pipeline

import (
	"strings"

	"github.com/sells-group/research-orchestrator/internal/model"
)

// Coverage counts the distinct signals gathered so far per analysis
// dimension.
type Coverage struct {
	Features    int
	Competitors int
	UseCases    int
	TechStack   int
}

// GateDecision is the quality gate's verdict after the gathering stages.
type GateDecision struct {
	Advance bool
	Score   float64
	Weakest model.Dimension
	Reason  string
}

// coverageOf tallies unique extraction signals across the gathered content.
func coverageOf(state *model.ResearchState) Coverage {
	features := map[string]bool{}
	competitors := map[string]bool{}
	useCases := map[string]bool{}
	techStack := map[string]bool{}

	for _, ec := range state.ExtractedContent {
		for _, f := range ec.Metadata.Features {
			features[strings.ToLower(f)] = true
		}
		for _, c := range ec.Metadata.Competitors {
			competitors[strings.ToLower(c)] = true
		}
		for _, u := range ec.Metadata.UseCases {
			useCases[strings.ToLower(u)] = true
		}
		for _, ts := range ec.Metadata.TechStack {
			techStack[strings.ToLower(ts)] = true
		}
	}

	return Coverage{
		Features:    len(features),
		Competitors: len(competitors),
		UseCases:    len(useCases),
		TechStack:   len(techStack),
	}
}

// CompletionScore combines per-dimension coverage ratios (clamped at 1.0
// against the thresholds' minimums) into a 0-1 weighted score. More
// coverage never decreases the score.
func (p ScorePolicy) CompletionScore(c Coverage, t model.QualityThresholds) float64 {
	total := p.totalWeight()
	if total <= 0 {
		return 0
	}
	score := p.FeatureWeight*ratio(c.Features, t.MinFeatures) +
		p.CompetitorWeight*ratio(c.Competitors, t.MinCompetitors) +
		p.UseCaseWeight*ratio(c.UseCases, t.MinUseCases) +
		p.TechStackWeight*ratio(c.TechStack, t.MinTechStack)
	return score / total
}

func ratio(have, want int) float64 {
	if want <= 0 {
		return 1
	}
	r := float64(have) / float64(want)
	if r > 1 {
		r = 1
	}
	return r
}

// EvaluateGate decides, after searching and extracting, whether to advance
// to analysis or loop back to the planner for supplementary queries. The
// retry budget always wins: once RetryCount reaches MaxRetries the gate
// advances regardless of coverage, so the run terminates with a
// degraded-quality analysis rather than never.
func EvaluateGate(state *model.ResearchState, policy ScorePolicy) GateDecision {
	cov := coverageOf(state)
	score := policy.CompletionScore(cov, state.Thresholds)

	decision := GateDecision{
		Score:   score,
		Weakest: weakestDimension(cov, state.Thresholds),
	}

	if state.RetryCount >= state.MaxRetries {
		decision.Advance = true
		decision.Reason = "retry budget exhausted"
		return decision
	}

	switch {
	case len(state.SearchResults) < state.Thresholds.MinSearchResults:
		decision.Reason = "insufficient search results"
	case state.SearchIterations < state.Thresholds.MinIterations:
		decision.Reason = "below minimum search iterations"
	case score < state.Thresholds.CompletionScore:
		decision.Reason = "completion score below threshold"
	default:
		decision.Advance = true
		decision.Reason = "thresholds met"
	}
	return decision
}

// weakestDimension names the facet with the lowest coverage ratio; the
// planner targets it on a loop-back pass.
func weakestDimension(c Coverage, t model.QualityThresholds) model.Dimension {
	weakest := model.DimensionFeatures
	low := ratio(c.Features, t.MinFeatures)

	for _, cand := range []struct {
		dim model.Dimension
		r   float64
	}{
		{model.DimensionCompetitors, ratio(c.Competitors, t.MinCompetitors)},
		{model.DimensionReviews, ratio(c.UseCases, t.MinUseCases)},
		{model.DimensionTechnical, ratio(c.TechStack, t.MinTechStack)},
	} {
		if cand.r < low {
			weakest, low = cand.dim, cand.r
		}
	}
	return weakest
}

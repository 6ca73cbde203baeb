package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/internal/model"
)

// AnalysisStrategy produces a complete AnalysisResult from gathered state.
// Implementations must populate every field, possibly with empty
// collections, so the reporter never observes a partial shape.
type AnalysisStrategy interface {
	Analyze(ctx context.Context, state *model.ResearchState) (*model.AnalysisResult, error)
	Name() string
}

// runAnalyzer synthesizes the analysis. The generative strategy is tried
// first when a provider is configured; any failure or unparsable output
// selects the rule-based fallback, which cannot fail.
func runAnalyzer(ctx context.Context, state *model.ResearchState, gen Generative, policy ScorePolicy) error {
	strategies := []AnalysisStrategy{}
	if gen != nil {
		strategies = append(strategies, &generativeAnalysis{gen: gen})
	}
	strategies = append(strategies, &ruleBasedAnalysis{policy: policy})

	for _, s := range strategies {
		analysis, err := s.Analyze(ctx, state)
		if err != nil {
			zap.L().Warn("analyzer: strategy failed, falling back",
				zap.String("project_id", state.ProjectID),
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			continue
		}
		state.Analysis = analysis
		zap.L().Info("analyzer: analysis complete",
			zap.String("project_id", state.ProjectID),
			zap.String("method", analysis.Method),
			zap.Float64("confidence", analysis.ConfidenceScore),
		)
		return nil
	}
	// Unreachable: the rule-based strategy never errors.
	return nil
}

// generativeAnalysis asks the generative provider for a structured JSON
// analysis of the extracted material.
type generativeAnalysis struct {
	gen Generative
}

func (a *generativeAnalysis) Name() string { return "generative" }

func (a *generativeAnalysis) Analyze(ctx context.Context, state *model.ResearchState) (*model.AnalysisResult, error) {
	text, err := a.gen.Complete(ctx, analyzeSystemPrompt,
		fmt.Sprintf(analyzePrompt, state.Title, len(state.ExtractedContent), corpusDigest(state)),
		GenOptions{Temperature: 0.2, MaxTokens: 8192},
	)
	if err != nil {
		return nil, err
	}

	var analysis model.AnalysisResult
	if err := json.Unmarshal([]byte(stripFences(text)), &analysis); err != nil {
		return nil, err
	}

	analysis.Method = "generative"
	fillAnalysisDefaults(&analysis)
	return &analysis, nil
}

// corpusDigest flattens extracted content into a bounded prompt section.
func corpusDigest(state *model.ResearchState) string {
	const perDoc = 3000
	var b strings.Builder
	for i, ec := range state.ExtractedContent {
		content := ec.Content
		if len(content) > perDoc {
			content = content[:perDoc]
		}
		fmt.Fprintf(&b, "--- Document %d: %s (%s)\n%s\n", i+1, ec.Title, ec.URL, content)
		if b.Len() > 120_000 {
			break
		}
	}
	if b.Len() == 0 {
		b.WriteString("(no extracted documents)")
	}
	return b.String()
}

// stripFences removes a markdown code fence wrapper from a model response.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// fillAnalysisDefaults normalizes nil collections and clamps scores so
// downstream consumers see the full shape regardless of strategy.
func fillAnalysisDefaults(a *model.AnalysisResult) {
	if a.Features == nil {
		a.Features = []model.Feature{}
	}
	if a.Competitors == nil {
		a.Competitors = []model.Competitor{}
	}
	if a.UseCases == nil {
		a.UseCases = []string{}
	}
	if a.TechStack == nil {
		a.TechStack = []string{}
	}
	if a.DataGaps == nil {
		a.DataGaps = []string{}
	}
	if a.SWOT == nil {
		a.SWOT = &model.SWOT{Strengths: []string{}, Weaknesses: []string{}, Opportunities: []string{}, Threats: []string{}}
	}
	if a.MarketData == nil {
		a.MarketData = &model.MarketData{}
	}
	if a.ConfidenceScore < 0 {
		a.ConfidenceScore = 0
	}
	if a.ConfidenceScore > 1 {
		a.ConfidenceScore = 1
	}
}

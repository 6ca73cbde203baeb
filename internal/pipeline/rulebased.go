package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/research-orchestrator/internal/model"
)

var (
	marketSizeRe = regexp.MustCompile(`(?i)\$[\d.,]+\s*(billion|million|trillion|bn|b|m)\b`)
	growthRe     = regexp.MustCompile(`(?i)([\d.]+)\s*%\s*(cagr|annual growth|growth rate|yoy)`)
	priceRe      = regexp.MustCompile(`(?i)\$[\d.,]+\s*(?:/|per\s+)(?:mo|month|user|seat|year|yr)`)
	reviewRe     = regexp.MustCompile(`(?i)([\d.]+)\s*(?:/|out of)\s*5`)
)

// ruleBasedAnalysis is the deterministic fallback: it aggregates extraction
// signals and regex-mined figures into a complete AnalysisResult. It never
// returns an error.
type ruleBasedAnalysis struct {
	policy ScorePolicy
}

func (a *ruleBasedAnalysis) Name() string { return "rule_based" }

func (a *ruleBasedAnalysis) Analyze(_ context.Context, state *model.ResearchState) (*model.AnalysisResult, error) {
	features := collectFeatures(state)
	competitors := collectCompetitors(state)
	useCases := uniqueSignals(state, func(m model.ExtractionMetadata) []string { return m.UseCases })
	techStack := uniqueSignals(state, func(m model.ExtractionMetadata) []string { return m.TechStack })

	analysis := &model.AnalysisResult{
		Summary:     buildSummary(state, len(features), len(competitors)),
		Features:    features,
		Competitors: competitors,
		UseCases:    useCases,
		TechStack:   techStack,
		SWOT:        buildSWOT(features, competitors, useCases, state),
		MarketData:  mineMarketData(state),
		Metrics:     mineMetrics(state),
		DataGaps:    findDataGaps(state),
		Method:      "rule_based",
	}
	// Deterministic confidence: coverage-driven, discounted because no
	// synthesis happened.
	analysis.ConfidenceScore = 0.7 * a.policy.CompletionScore(coverageOf(state), state.Thresholds)

	fillAnalysisDefaults(analysis)
	return analysis, nil
}

func uniqueSignals(state *model.ResearchState, pick func(model.ExtractionMetadata) []string) []string {
	seen := map[string]string{}
	var order []string
	for _, ec := range state.ExtractedContent {
		for _, v := range pick(ec.Metadata) {
			key := strings.ToLower(strings.TrimSpace(v))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; !ok {
				seen[key] = v
				order = append(order, key)
			}
		}
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, seen[k])
	}
	return out
}

func collectFeatures(state *model.ResearchState) []model.Feature {
	sources := map[string][]string{}
	display := map[string]string{}
	var order []string
	for _, ec := range state.ExtractedContent {
		for _, f := range ec.Metadata.Features {
			key := strings.ToLower(strings.TrimSpace(f))
			if key == "" {
				continue
			}
			if _, ok := display[key]; !ok {
				display[key] = f
				order = append(order, key)
			}
			sources[key] = append(sources[key], ec.URL)
		}
	}

	// Corroborated features first.
	sort.SliceStable(order, func(i, j int) bool {
		return len(sources[order[i]]) > len(sources[order[j]])
	})

	out := make([]model.Feature, 0, len(order))
	for _, k := range order {
		out = append(out, model.Feature{
			Name:    display[k],
			Sources: dedupeStrings(sources[k]),
		})
	}
	return out
}

func collectCompetitors(state *model.ResearchState) []model.Competitor {
	names := uniqueSignals(state, func(m model.ExtractionMetadata) []string { return m.Competitors })
	out := make([]model.Competitor, 0, len(names))
	for _, n := range names {
		out = append(out, model.Competitor{Name: n})
	}
	return out
}

func buildSummary(state *model.ResearchState, features, competitors int) string {
	return fmt.Sprintf(
		"Research on %q gathered %d sources and extracted %d documents, identifying %d distinct features and %d competitors.",
		state.Title, len(state.SearchResults), len(state.ExtractedContent), features, competitors,
	)
}

func buildSWOT(features []model.Feature, competitors []model.Competitor, useCases []string, state *model.ResearchState) *model.SWOT {
	swot := &model.SWOT{
		Strengths:     []string{},
		Weaknesses:    []string{},
		Opportunities: []string{},
		Threats:       []string{},
	}
	for i, f := range features {
		if i >= 5 {
			break
		}
		swot.Strengths = append(swot.Strengths, f.Name)
	}
	for _, gap := range findDataGaps(state) {
		swot.Weaknesses = append(swot.Weaknesses, "limited visibility: "+gap)
	}
	for i, u := range useCases {
		if i >= 5 {
			break
		}
		swot.Opportunities = append(swot.Opportunities, u)
	}
	for i, c := range competitors {
		if i >= 5 {
			break
		}
		swot.Threats = append(swot.Threats, "competition from "+c.Name)
	}
	return swot
}

func mineMarketData(state *model.ResearchState) *model.MarketData {
	md := &model.MarketData{}
	for _, ec := range state.ExtractedContent {
		if md.TAM == "" {
			if m := marketSizeRe.FindString(ec.Content); m != "" {
				md.TAM = m
				md.Confidence = 0.3
			}
		}
		if md.GrowthRate == "" {
			if m := growthRe.FindStringSubmatch(ec.Content); m != nil {
				md.GrowthRate = m[1] + "% CAGR"
			}
		}
	}
	return md
}

func mineMetrics(state *model.ResearchState) model.BusinessMetrics {
	metrics := model.BusinessMetrics{}
	var pricePoints []string
	for _, ec := range state.ExtractedContent {
		pricePoints = append(pricePoints, priceRe.FindAllString(ec.Content, 3)...)
		if metrics.ReviewScore == 0 {
			if m := reviewRe.FindStringSubmatch(ec.Content); m != nil {
				if score, err := strconv.ParseFloat(m[1], 64); err == nil && score <= 5 {
					metrics.ReviewScore = score
				}
			}
		}
	}
	metrics.PricePoints = dedupeStrings(pricePoints)
	if len(metrics.PricePoints) > 0 {
		metrics.PricingModel = "subscription"
	}
	return metrics
}

// findDataGaps names the dimensions still below their thresholds.
func findDataGaps(state *model.ResearchState) []string {
	cov := coverageOf(state)
	t := state.Thresholds
	gaps := []string{}
	if cov.Features < t.MinFeatures {
		gaps = append(gaps, fmt.Sprintf("features (%d of %d)", cov.Features, t.MinFeatures))
	}
	if cov.Competitors < t.MinCompetitors {
		gaps = append(gaps, fmt.Sprintf("competitors (%d of %d)", cov.Competitors, t.MinCompetitors))
	}
	if cov.UseCases < t.MinUseCases {
		gaps = append(gaps, fmt.Sprintf("use cases (%d of %d)", cov.UseCases, t.MinUseCases))
	}
	if cov.TechStack < t.MinTechStack {
		gaps = append(gaps, fmt.Sprintf("tech stack (%d of %d)", cov.TechStack, t.MinTechStack))
	}
	return gaps
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

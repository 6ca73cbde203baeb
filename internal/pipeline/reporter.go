package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/internal/model"
)

// runReporter composes the final document from the analysis. A configured
// generative provider writes the prose; otherwise (or on failure) a
// template renders the same AnalysisResult. Diagram specifications are
// always appended deterministically.
func runReporter(ctx context.Context, state *model.ResearchState, gen Generative) error {
	if state.Analysis == nil {
		return errNoAnalysis
	}

	var body string
	if gen != nil {
		analysisJSON, err := json.MarshalIndent(state.Analysis, "", "  ")
		if err == nil {
			text, genErr := gen.Complete(ctx, reportSystemPrompt,
				fmt.Sprintf(reportPrompt, state.Title, analysisJSON),
				GenOptions{Temperature: 0.4, MaxTokens: 8192},
			)
			if genErr == nil && strings.TrimSpace(text) != "" {
				body = text
			} else if genErr != nil {
				zap.L().Warn("reporter: generative composition failed, using template",
					zap.String("project_id", state.ProjectID),
					zap.Error(genErr),
				)
			}
		}
	}
	if body == "" {
		body = templateReport(state)
	}

	state.Report = body + "\n\n" + diagramSpecs(state.Analysis)
	return nil
}

// templateReport renders the analysis into markdown without any generative
// help.
func templateReport(state *model.ResearchState) string {
	a := state.Analysis
	var b strings.Builder

	fmt.Fprintf(&b, "# Product Research Report: %s\n\n", state.Title)

	b.WriteString("## Executive Summary\n")
	fmt.Fprintf(&b, "%s\n\n", a.Summary)
	fmt.Fprintf(&b, "Analysis method: %s (confidence %.0f%%).\n\n", a.Method, a.ConfidenceScore*100)

	b.WriteString("## Features\n")
	if len(a.Features) == 0 {
		b.WriteString("No features identified.\n")
	}
	for _, f := range a.Features {
		if f.Description != "" {
			fmt.Fprintf(&b, "- **%s** — %s\n", f.Name, f.Description)
		} else {
			fmt.Fprintf(&b, "- **%s**\n", f.Name)
		}
	}
	b.WriteString("\n## Competitive Landscape\n")
	if len(a.Competitors) == 0 {
		b.WriteString("No competitors identified.\n")
	}
	for _, c := range a.Competitors {
		fmt.Fprintf(&b, "- **%s**", c.Name)
		if c.Segment != "" {
			fmt.Fprintf(&b, " (%s)", c.Segment)
		}
		b.WriteString("\n")
		for _, s := range c.Strengths {
			fmt.Fprintf(&b, "  - strength: %s\n", s)
		}
		for _, w := range c.Weaknesses {
			fmt.Fprintf(&b, "  - weakness: %s\n", w)
		}
	}

	b.WriteString("\n## Use Cases\n")
	writeList(&b, a.UseCases, "No use cases identified.")

	b.WriteString("\n## Technology\n")
	writeList(&b, a.TechStack, "No technology signals identified.")

	b.WriteString("\n## SWOT Analysis\n")
	fmt.Fprintf(&b, "- Strengths: %s\n", joinOr(a.SWOT.Strengths, "none identified"))
	fmt.Fprintf(&b, "- Weaknesses: %s\n", joinOr(a.SWOT.Weaknesses, "none identified"))
	fmt.Fprintf(&b, "- Opportunities: %s\n", joinOr(a.SWOT.Opportunities, "none identified"))
	fmt.Fprintf(&b, "- Threats: %s\n", joinOr(a.SWOT.Threats, "none identified"))

	b.WriteString("\n## Market Sizing\n")
	fmt.Fprintf(&b, "- TAM: %s\n", orDash(a.MarketData.TAM))
	fmt.Fprintf(&b, "- SAM: %s\n", orDash(a.MarketData.SAM))
	fmt.Fprintf(&b, "- SOM: %s\n", orDash(a.MarketData.SOM))
	fmt.Fprintf(&b, "- Growth: %s\n", orDash(a.MarketData.GrowthRate))

	b.WriteString("\n## Business Metrics\n")
	fmt.Fprintf(&b, "- Pricing model: %s\n", orDash(a.Metrics.PricingModel))
	fmt.Fprintf(&b, "- Price points: %s\n", joinOr(a.Metrics.PricePoints, "unknown"))
	if a.Metrics.ReviewScore > 0 {
		fmt.Fprintf(&b, "- Review score: %.1f/5\n", a.Metrics.ReviewScore)
	}

	b.WriteString("\n## Data Gaps\n")
	writeList(&b, a.DataGaps, "No outstanding gaps.")

	return b.String()
}

// diagramSpecs emits mermaid sources for the SWOT quadrant, the competitor
// mindmap and the market pie.
func diagramSpecs(a *model.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("## Diagrams\n\n")

	// SWOT quadrant
	b.WriteString("```mermaid\nquadrantChart\n    title SWOT\n")
	b.WriteString("    x-axis Internal --> External\n    y-axis Harmful --> Helpful\n")
	b.WriteString(quadrantPoints(a.SWOT))
	b.WriteString("```\n\n")

	// Competitor mindmap
	b.WriteString("```mermaid\nmindmap\n  root((Competitors))\n")
	for _, c := range a.Competitors {
		fmt.Fprintf(&b, "    %s\n", mermaidEscape(c.Name))
	}
	b.WriteString("```\n\n")

	// Market pie
	b.WriteString("```mermaid\npie title Market coverage\n")
	fmt.Fprintf(&b, "    \"Features\" : %d\n", len(a.Features))
	fmt.Fprintf(&b, "    \"Competitors\" : %d\n", len(a.Competitors))
	fmt.Fprintf(&b, "    \"Use cases\" : %d\n", len(a.UseCases))
	fmt.Fprintf(&b, "    \"Tech stack\" : %d\n", len(a.TechStack))
	b.WriteString("```\n")

	return b.String()
}

func quadrantPoints(s *model.SWOT) string {
	var b strings.Builder
	emit := func(items []string, x, y float64) {
		for i, item := range items {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "    %s: [%.2f, %.2f]\n", mermaidEscape(clampSentence(item)), x, y+float64(i)*0.08)
		}
	}
	emit(s.Strengths, 0.25, 0.7)
	emit(s.Weaknesses, 0.25, 0.1)
	emit(s.Opportunities, 0.75, 0.7)
	emit(s.Threats, 0.75, 0.1)
	return b.String()
}

func mermaidEscape(s string) string {
	s = strings.NewReplacer(":", " -", "[", "(", "]", ")", "\"", "'", "\n", " ").Replace(s)
	if len(s) > 60 {
		s = s[:60]
	}
	return strings.TrimSpace(s)
}

func writeList(b *strings.Builder, items []string, empty string) {
	if len(items) == 0 {
		b.WriteString(empty + "\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, "; ")
}

func orDash(s string) string {
	if s == "" {
		return "not determined"
	}
	return s
}

package pipeline

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/internal/model"
)

// queryTemplates holds per-dimension search phrasings, templated with the
// research topic.
var queryTemplates = map[model.Dimension][]queryTemplate{
	model.DimensionFeatures: {
		{"%s features and capabilities", "catalog the product's capabilities", 9},
		{"%s product documentation overview", "find first-party feature descriptions", 7},
	},
	model.DimensionCompetitors: {
		{"%s competitors and alternatives", "identify competing products", 9},
		{"%s vs alternatives comparison", "find head-to-head comparisons", 7},
	},
	model.DimensionMarket: {
		{"%s market size TAM growth", "estimate market sizing", 6},
	},
	model.DimensionPricing: {
		{"%s pricing plans cost", "establish pricing model and price points", 6},
	},
	model.DimensionReviews: {
		{"%s reviews user experiences", "collect user sentiment and use cases", 7},
	},
	model.DimensionTechnical: {
		{"%s architecture technology stack integrations", "identify underlying technology", 6},
	},
}

type queryTemplate struct {
	format   string
	purpose  string
	priority int
}

// runPlanner plans the next search pass. It performs no I/O: on a first
// pass it seeds thresholds and emits queries across every dimension; on a
// loop-back pass it emits supplementary queries targeting the weakest
// dimension found in the gathered material.
func runPlanner(state *model.ResearchState) error {
	if state.Title == "" {
		return eris.New("planner: research topic is empty")
	}

	if state.SearchIterations == 0 {
		state.Thresholds = model.DefaultThresholds()
		for _, dim := range model.Dimensions {
			state.PendingQueries = append(state.PendingQueries, buildQueries(state.Title, dim)...)
		}
		zap.L().Info("planner: initial pass",
			zap.String("project_id", state.ProjectID),
			zap.Int("queries", len(state.PendingQueries)),
		)
		return nil
	}

	// Loop-back: concentrate on the thinnest dimension.
	weakest := weakestDimension(coverageOf(state), state.Thresholds)
	queries := buildQueries(state.Title, weakest)

	// Vary phrasing on repeat passes so re-running a weak dimension does
	// not just replay the identical queries.
	for i := range queries {
		queries[i].Query = fmt.Sprintf("%s (iteration %d)", queries[i].Query, state.RetryCount+1)
	}
	state.PendingQueries = append(state.PendingQueries, queries...)

	zap.L().Info("planner: supplementary pass",
		zap.String("project_id", state.ProjectID),
		zap.String("target_dimension", string(weakest)),
		zap.Int("queries", len(queries)),
	)
	return nil
}

func buildQueries(topic string, dim model.Dimension) []model.SearchQuery {
	templates := queryTemplates[dim]
	out := make([]model.SearchQuery, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, model.SearchQuery{
			ID:        uuid.NewString(),
			Query:     fmt.Sprintf(tpl.format, topic),
			Purpose:   tpl.purpose,
			Dimension: dim,
			Priority:  tpl.priority,
		})
	}
	return out
}

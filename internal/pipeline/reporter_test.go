package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-orchestrator/internal/model"
)

func analyzedState(t *testing.T) *model.ResearchState {
	t.Helper()
	state := gatheredState("industrial IoT platform")
	require.NoError(t, runAnalyzer(context.Background(), state, nil, DefaultScorePolicy()))
	return state
}

func TestReporterTemplateReferencesAnalysisNames(t *testing.T) {
	t.Parallel()

	state := analyzedState(t)
	require.NoError(t, runReporter(context.Background(), state, nil))
	require.NotEmpty(t, state.Report)

	for _, f := range state.Analysis.Features[:min(3, len(state.Analysis.Features))] {
		assert.Contains(t, state.Report, f.Name)
	}
	for _, c := range state.Analysis.Competitors[:min(3, len(state.Analysis.Competitors))] {
		assert.Contains(t, state.Report, c.Name)
	}
}

func TestReporterEmitsDiagramSpecs(t *testing.T) {
	t.Parallel()

	state := analyzedState(t)
	require.NoError(t, runReporter(context.Background(), state, nil))

	assert.Contains(t, state.Report, "quadrantChart")
	assert.Contains(t, state.Report, "mindmap")
	assert.Contains(t, state.Report, "pie title")
}

func TestReporterGenerativeComposition(t *testing.T) {
	t.Parallel()

	state := analyzedState(t)
	gen := &fakeGenerative{response: "# Custom Report\n\nGenerated prose."}

	require.NoError(t, runReporter(context.Background(), state, gen))
	assert.Contains(t, state.Report, "Custom Report")
	assert.Contains(t, state.Report, "quadrantChart", "diagrams appended regardless of composer")
}

func TestReporterFallsBackWhenGenerativeFails(t *testing.T) {
	t.Parallel()

	state := analyzedState(t)
	gen := &fakeGenerative{err: errors.New("overloaded")}

	require.NoError(t, runReporter(context.Background(), state, gen))
	assert.Contains(t, state.Report, "Product Research Report")
}

func TestReporterWithoutAnalysisFails(t *testing.T) {
	t.Parallel()

	state := gatheredState("topic")
	require.Error(t, runReporter(context.Background(), state, nil))
}

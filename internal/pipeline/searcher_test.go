package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/internal/source"
	"github.com/sells-group/research-orchestrator/pkg/perplexity"
)

func plannedState(t *testing.T) *model.ResearchState {
	t.Helper()
	state := model.NewResearchState(uuid.NewString(), "industrial IoT platform")
	require.NoError(t, runPlanner(state))
	return state
}

func TestSearcherAppendsTaggedResults(t *testing.T) {
	t.Parallel()

	state := plannedState(t)
	queries := len(state.PendingQueries)
	web := &fakeProvider{name: "web", perQuery: 2}

	require.NoError(t, runSearcher(context.Background(), state, registryWith(map[string]source.Provider{"web": web}), 5, 0))

	assert.NotEmpty(t, state.SearchResults)
	assert.Empty(t, state.PendingQueries, "pending queries are consumed")
	assert.Equal(t, queries, state.TotalSearches)
	assert.Equal(t, 1, state.SearchIterations, "one pass regardless of query count")

	knownIDs := map[string]bool{}
	for _, r := range state.SearchResults {
		knownIDs[r.QueryID] = true
		assert.NotEmpty(t, r.ContentHash)
	}
	assert.NotEmpty(t, knownIDs)
}

func TestSearcherRoutesReviewsToForum(t *testing.T) {
	t.Parallel()

	state := model.NewResearchState(uuid.NewString(), "topic")
	state.PendingQueries = []model.SearchQuery{
		{ID: "q1", Query: "topic reviews", Dimension: model.DimensionReviews, Priority: 5},
	}

	web := &fakeProvider{name: "web", perQuery: 1}
	forum := &fakeProvider{name: "forum", perQuery: 1}
	require.NoError(t, runSearcher(context.Background(), state,
		registryWith(map[string]source.Provider{"web": web, "forum": forum}), 5, 0))

	assert.Equal(t, 1, forum.calls)
	assert.Zero(t, web.calls)
}

// sharedAnswerPerplexity mimics a chat completion: one synthesized answer
// cited by several distinct URLs.
type sharedAnswerPerplexity struct {
	answer    string
	citations []string
}

func (s *sharedAnswerPerplexity) ChatCompletion(context.Context, perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	return &perplexity.ChatCompletionResponse{
		Choices:   []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: s.answer}}},
		Citations: s.citations,
	}, nil
}

func TestSearcherKeepsForumCitationsSharingOneAnswer(t *testing.T) {
	t.Parallel()

	state := model.NewResearchState(uuid.NewString(), "topic")
	state.PendingQueries = []model.SearchQuery{
		{ID: "q1", Query: "topic reviews", Dimension: model.DimensionReviews, Priority: 5},
	}

	forum := source.NewForumProvider(&sharedAnswerPerplexity{
		answer: "one synthesized answer about uptime",
		citations: []string{
			"https://forum.acme.io/t/uptime/1",
			"https://forum.acme.io/t/uptime/2",
			"https://forum.acme.io/t/uptime/3",
		},
	}, 100)

	require.NoError(t, runSearcher(context.Background(), state,
		registryWith(map[string]source.Provider{"forum": forum}), 5, 0))

	// Content-hash dedup must not collapse URL-distinct citations.
	require.Len(t, state.SearchResults, 3)
	urls := make(map[string]bool)
	for _, r := range state.SearchResults {
		urls[r.URL] = true
	}
	assert.Len(t, urls, 3)
}

func TestSearcherDedupIdempotence(t *testing.T) {
	t.Parallel()

	state := model.NewResearchState(uuid.NewString(), "topic")
	state.PendingQueries = []model.SearchQuery{{ID: "q1", Query: "first", Priority: 5}}

	// Provider replays the same URLs every call plus one new URL per pass.
	replay := &replayProvider{}
	reg := registryWith(map[string]source.Provider{"web": replay})

	require.NoError(t, runSearcher(context.Background(), state, reg, 10, 0))
	first := len(state.SearchResults)
	require.Equal(t, 3, first)

	state.PendingQueries = []model.SearchQuery{{ID: "q2", Query: "second", Priority: 5}}
	require.NoError(t, runSearcher(context.Background(), state, reg, 10, 0))

	assert.Equal(t, first+1, len(state.SearchResults),
		"superset re-run adds only the genuinely new URL")
}

// replayProvider returns a fixed set of URLs plus one fresh URL per call,
// with tracking-parameter and case variations on the repeats.
type replayProvider struct {
	calls int
}

func (r *replayProvider) Name() string { return "web" }

func (r *replayProvider) Search(_ context.Context, q model.SearchQuery, _ int) ([]model.SearchResult, error) {
	r.calls++
	results := []model.SearchResult{
		{ID: uuid.NewString(), URL: "https://example.com/a", Content: "alpha", QueryID: q.ID},
		{ID: uuid.NewString(), URL: "https://WWW.Example.com/a?utm_source=x", Content: "alpha copy", QueryID: q.ID},
		{ID: uuid.NewString(), URL: "https://example.com/b", Content: "beta", QueryID: q.ID},
	}
	if r.calls == 1 {
		return results, nil
	}
	return append(results, model.SearchResult{
		ID: uuid.NewString(), URL: "https://example.com/c", Content: "gamma", QueryID: q.ID,
	}), nil
}

func TestSearcherDedupsByContentHash(t *testing.T) {
	t.Parallel()

	state := model.NewResearchState(uuid.NewString(), "topic")
	state.PendingQueries = []model.SearchQuery{{ID: "q1", Query: "q", Priority: 5}}

	dup := &contentDupProvider{}
	require.NoError(t, runSearcher(context.Background(), state,
		registryWith(map[string]source.Provider{"web": dup}), 10, 0))

	assert.Len(t, state.SearchResults, 1, "same fingerprint on different URLs collapses")
}

type contentDupProvider struct{}

func (contentDupProvider) Name() string { return "web" }

func (contentDupProvider) Search(_ context.Context, q model.SearchQuery, _ int) ([]model.SearchResult, error) {
	return []model.SearchResult{
		{ID: "1", URL: "https://mirror-a.example.com/doc", Content: "Shared   Body Text", QueryID: q.ID},
		{ID: "2", URL: "https://mirror-b.example.com/doc", Content: "shared body text", QueryID: q.ID},
	}, nil
}

func TestSearcherAllQueriesFailed(t *testing.T) {
	t.Parallel()

	state := plannedState(t)
	web := &fakeProvider{name: "web", perQuery: 1, err: errors.New("upstream down")}

	err := runSearcher(context.Background(), state, registryWith(map[string]source.Provider{"web": web}), 5, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every query failed")
}

func TestSearcherNoPendingQueries(t *testing.T) {
	t.Parallel()

	state := model.NewResearchState(uuid.NewString(), "topic")
	err := runSearcher(context.Background(), state, registryWith(nil), 5, 0)
	require.Error(t, err)
}

// stalledProvider parks until its call context expires.
type stalledProvider struct{}

func (stalledProvider) Name() string { return "web" }

func (stalledProvider) Search(ctx context.Context, _ model.SearchQuery, _ int) ([]model.SearchResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSearcherHonorsConfiguredTimeout(t *testing.T) {
	t.Parallel()

	state := model.NewResearchState(uuid.NewString(), "topic")
	state.PendingQueries = []model.SearchQuery{{ID: "q1", Query: "q", Priority: 5}}

	start := time.Now()
	err := runSearcher(context.Background(), state,
		registryWith(map[string]source.Provider{"web": stalledProvider{}}), 5, 20*time.Millisecond)

	require.Error(t, err, "the only query timed out")
	assert.Less(t, time.Since(start), 5*time.Second, "timeout came from the configured value, not the default")
}

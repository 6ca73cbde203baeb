package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/pkg/perplexity"
)

type stubPerplexity struct {
	resp *perplexity.ChatCompletionResponse
	err  error
	last perplexity.ChatCompletionRequest
}

func (s *stubPerplexity) ChatCompletion(_ context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	s.last = req
	return s.resp, s.err
}

func TestForumProviderSearch(t *testing.T) {
	t.Parallel()

	client := &stubPerplexity{resp: &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{
			Role:    "assistant",
			Content: "users praise the dashboard but complain about pricing",
		}}},
		Citations: []string{
			"https://www.reddit.com/r/saas/comments/abc",
			"https://news.ycombinator.com/item?id=123",
			"https://forum.acme.io/t/pricing/9",
		},
	}}

	p := NewForumProvider(client, 100)
	query := model.SearchQuery{ID: "q-2", Query: "acme reviews", Purpose: "user sentiment", Dimension: model.DimensionReviews}

	results, err := p.Search(context.Background(), query, 2)
	require.NoError(t, err)
	require.Len(t, results, 2, "limit caps citations")

	assert.Equal(t, "forum", results[0].Source)
	assert.Equal(t, "reddit.com/r/saas/comments/abc", results[0].Title)
	assert.Contains(t, results[0].Content, "praise the dashboard")
	assert.Equal(t, model.DimensionReviews, results[1].Dimension)

	require.Len(t, client.last.Messages, 2)
	assert.Contains(t, client.last.Messages[1].Content, "user sentiment")
}

func TestForumProviderCitationsCarryDistinctContent(t *testing.T) {
	t.Parallel()

	client := &stubPerplexity{resp: &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{
			Role:    "assistant",
			Content: "one shared synthesized answer",
		}}},
		Citations: []string{
			"https://forum.acme.io/t/uptime/1",
			"https://forum.acme.io/t/uptime/2",
			"https://forum.acme.io/t/uptime/3",
		},
	}}

	p := NewForumProvider(client, 100)
	results, err := p.Search(context.Background(), model.SearchQuery{ID: "q-3", Query: "acme uptime"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// The answer is shared, but each citation's content must differ so
	// content-hash dedup keeps all three URLs.
	seen := make(map[string]bool)
	for _, r := range results {
		assert.Contains(t, r.Content, "one shared synthesized answer")
		assert.Contains(t, r.Content, r.URL)
		assert.False(t, seen[r.Content], "content repeated for %s", r.URL)
		seen[r.Content] = true
	}
}

func TestCitationTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "news.ycombinator.com/item", citationTitle("https://news.ycombinator.com/item?id=123"))
	assert.Equal(t, "acme.io/blog", citationTitle("http://www.acme.io/blog/"))
}

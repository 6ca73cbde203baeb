package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/pkg/jina"
)

type stubJina struct {
	search    *jina.SearchResponse
	searchErr error
	read      *jina.ReadResponse
	readErr   error
	readCalls int
}

func (s *stubJina) Read(_ context.Context, _ string) (*jina.ReadResponse, error) {
	s.readCalls++
	return s.read, s.readErr
}

func (s *stubJina) Search(_ context.Context, _ string, _ int) (*jina.SearchResponse, error) {
	return s.search, s.searchErr
}

func TestWebProviderSearch(t *testing.T) {
	t.Parallel()

	client := &stubJina{search: &jina.SearchResponse{
		Code: 200,
		Data: []jina.SearchResult{
			{Title: "Acme docs", URL: "https://acme.io/docs", Content: "long form body"},
			{Title: "no url hit", URL: "  "},
			{Title: "Acme pricing", URL: "https://acme.io/pricing", Description: "tiers"},
		},
	}}

	p := NewWebProvider(client, 100)
	query := model.SearchQuery{ID: "q-1", Query: "acme features", Dimension: model.DimensionFeatures}

	results, err := p.Search(context.Background(), query, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "web", results[0].Source)
	assert.Equal(t, "q-1", results[0].QueryID)
	assert.Equal(t, model.DimensionFeatures, results[0].Dimension)
	assert.NotEmpty(t, results[0].ID)
	// description backfills empty content
	assert.Equal(t, "tiers", results[1].Content)
}

func TestWebProviderSearchError(t *testing.T) {
	t.Parallel()

	p := NewWebProvider(&stubJina{searchErr: errors.New("boom")}, 100)
	_, err := p.Search(context.Background(), model.SearchQuery{Query: "x"}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web search")
}

func TestScoreHit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, scoreHit("", ""))
	assert.Equal(t, 5, scoreHit("titled", ""))
	assert.Equal(t, 10, scoreHit("titled", string(make([]byte, 3000))))
}

package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-orchestrator/pkg/firecrawl"
	"github.com/sells-group/research-orchestrator/pkg/jina"
)

type stubFirecrawl struct {
	resp  *firecrawl.ScrapeResponse
	err   error
	calls int
}

func (s *stubFirecrawl) Scrape(_ context.Context, _ firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	s.calls++
	return s.resp, s.err
}

func TestChainFetcherReaderFirst(t *testing.T) {
	t.Parallel()

	reader := &stubJina{read: &jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{Title: "Docs", Content: "markdown body"},
	}}
	fallback := &stubFirecrawl{}

	f := NewChainFetcher(reader, fallback)
	page, err := f.Fetch(context.Background(), "https://acme.io/docs", 0)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, "Docs", page.Title)
	assert.Zero(t, fallback.calls, "fallback untouched when reader succeeds")
}

func TestChainFetcherFallsBack(t *testing.T) {
	t.Parallel()

	reader := &stubJina{readErr: errors.New("upstream 500")}
	fallback := &stubFirecrawl{resp: &firecrawl.ScrapeResponse{
		Success: true,
		Data:    firecrawl.PageData{Title: "Scraped", Markdown: "fallback body"},
	}}

	f := NewChainFetcher(reader, fallback)
	page, err := f.Fetch(context.Background(), "https://acme.io/docs", 0)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, "fallback body", page.Content)
	assert.Equal(t, 1, fallback.calls)
}

func TestChainFetcherSkipsNonContent(t *testing.T) {
	t.Parallel()

	f := NewChainFetcher(&stubJina{}, nil)

	for _, url := range []string{"ftp://acme.io/file", "https://acme.io/brochure.pdf", "https://acme.io/logo.png"} {
		page, err := f.Fetch(context.Background(), url, 0)
		require.NoError(t, err)
		assert.Nil(t, page, url)
	}
}

func TestChainFetcherClampsContent(t *testing.T) {
	t.Parallel()

	reader := &stubJina{read: &jina.ReadResponse{
		Data: jina.ReadData{Title: "Big", Content: string(make([]byte, 500))},
	}}

	f := NewChainFetcher(reader, nil)
	page, err := f.Fetch(context.Background(), "https://acme.io/big", 100)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Len(t, page.Content, 100)
}

func TestChainFetcherNoFallbackReturnsError(t *testing.T) {
	t.Parallel()

	f := NewChainFetcher(&stubJina{readErr: errors.New("timeout")}, nil)
	_, err := f.Fetch(context.Background(), "https://acme.io/docs", 0)
	require.Error(t, err)
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	t.Parallel()

	cb := newCircuitBreaker(3, time.Minute, 50*time.Millisecond)
	assert.False(t, cb.isOpen())

	cb.recordFailure()
	cb.recordFailure()
	assert.False(t, cb.isOpen())
	cb.recordFailure()
	assert.True(t, cb.isOpen())

	time.Sleep(60 * time.Millisecond)
	assert.False(t, cb.isOpen())

	// success resets the count
	cb.recordFailure()
	cb.recordSuccess()
	cb.recordFailure()
	cb.recordFailure()
	assert.False(t, cb.isOpen())
}

func TestCircuitBreakerSuccessClosesOpenCircuit(t *testing.T) {
	t.Parallel()

	// Long cooldown: only recordSuccess can close the circuit here.
	cb := newCircuitBreaker(3, time.Minute, time.Hour)
	cb.recordFailure()
	cb.recordFailure()
	cb.recordFailure()
	require.True(t, cb.isOpen())

	cb.recordSuccess()
	assert.False(t, cb.isOpen())

	// And the failure count restarted from zero.
	cb.recordFailure()
	cb.recordFailure()
	assert.False(t, cb.isOpen())
}

func TestChainFetcherSkipsReaderWhileOpen(t *testing.T) {
	t.Parallel()

	reader := &stubJina{readErr: errors.New("down")}
	fallback := &stubFirecrawl{resp: &firecrawl.ScrapeResponse{
		Success: true,
		Data:    firecrawl.PageData{Markdown: "body"},
	}}
	f := NewChainFetcher(reader, fallback)

	for range 4 {
		_, err := f.Fetch(context.Background(), "https://acme.io/x", 0)
		require.NoError(t, err)
	}
	// breaker trips after 3 reader failures; 4th fetch goes straight to fallback
	assert.Equal(t, 3, reader.readCalls)
	assert.Equal(t, 4, fallback.calls)
}

package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/internal/source"
)

func uncrawledState(n int) *model.ResearchState {
	state := model.NewResearchState(uuid.NewString(), "industrial IoT platform")
	state.Thresholds = model.DefaultThresholds()
	for i := range n {
		state.SearchResults = append(state.SearchResults, model.SearchResult{
			ID:      uuid.NewString(),
			Source:  "web",
			URL:     fmt.Sprintf("https://example.com/doc/%d", i),
			Quality: 5 + i%5,
		})
	}
	return state
}

func TestExtractorMarksCrawledAndExtracts(t *testing.T) {
	t.Parallel()

	state := uncrawledState(5)
	fetcher := &fakeFetcher{}

	require.NoError(t, runExtractor(context.Background(), state, fetcher, 3, 0, 0))

	assert.Equal(t, 5, fetcher.calls)
	assert.Len(t, state.ExtractedContent, 5)
	for _, r := range state.SearchResults {
		assert.True(t, r.Crawled)
		assert.NotNil(t, r.CrawledAt)
	}
	meta := state.ExtractedContent[0].Metadata
	assert.NotEmpty(t, meta.Features)
	assert.NotEmpty(t, meta.Competitors)
	assert.NotEmpty(t, meta.UseCases)
	assert.NotEmpty(t, meta.TechStack)
	assert.Greater(t, meta.QualityScore, 0.0)
}

func TestExtractorSkipsUnfetchablePages(t *testing.T) {
	t.Parallel()

	state := uncrawledState(2)
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/doc/0": "", // fetcher returns nil page
	}}

	require.NoError(t, runExtractor(context.Background(), state, fetcher, 3, 0, 0))

	assert.Len(t, state.ExtractedContent, 1)
	// still marked crawled so loop-backs skip the dead URL
	assert.True(t, state.SearchResults[0].Crawled)
}

func TestExtractorCapsPerPass(t *testing.T) {
	t.Parallel()

	state := uncrawledState(maxCrawlsPerPass + 8)
	fetcher := &fakeFetcher{}

	require.NoError(t, runExtractor(context.Background(), state, fetcher, 3, 0, 0))
	assert.Equal(t, maxCrawlsPerPass, fetcher.calls)

	crawled := 0
	for _, r := range state.SearchResults {
		if r.Crawled {
			crawled++
		}
	}
	assert.Equal(t, maxCrawlsPerPass, crawled)
}

func TestExtractorIgnoresAlreadyCrawled(t *testing.T) {
	t.Parallel()

	state := uncrawledState(3)
	for i := range state.SearchResults {
		state.SearchResults[i].Crawled = true
	}
	fetcher := &fakeFetcher{}

	require.NoError(t, runExtractor(context.Background(), state, fetcher, 3, 0, 0))
	assert.Zero(t, fetcher.calls)
	assert.Empty(t, state.ExtractedContent)
}

func TestExtractorClampsContentLength(t *testing.T) {
	t.Parallel()

	state := uncrawledState(1)
	fetcher := &fakeFetcher{}

	require.NoError(t, runExtractor(context.Background(), state, fetcher, 3, 200, 0))
	require.Len(t, state.ExtractedContent, 1)
	assert.LessOrEqual(t, state.ExtractedContent[0].Metadata.ContentLength, 200)
}

// stalledFetcher parks until its call context expires.
type stalledFetcher struct{}

func (stalledFetcher) Fetch(ctx context.Context, _ string, _ int) (*source.Page, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExtractorHonorsConfiguredTimeout(t *testing.T) {
	t.Parallel()

	state := uncrawledState(2)

	start := time.Now()
	require.NoError(t, runExtractor(context.Background(), state, stalledFetcher{}, 3, 0, 20*time.Millisecond))
	assert.Less(t, time.Since(start), 5*time.Second, "timeout came from the configured value, not the default")

	// Timed-out fetches still mark their results crawled.
	for _, r := range state.SearchResults {
		assert.True(t, r.Crawled)
	}
	assert.Empty(t, state.ExtractedContent)
}

package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/internal/source"
)

const (
	// defaultFetchTimeout bounds one content fetch.
	defaultFetchTimeout = 30 * time.Second

	// maxCrawlsPerPass caps how many results one extractor pass fetches,
	// highest quality first. Loop-backs pick up the remainder.
	maxCrawlsPerPass = 12
)

// runExtractor fetches the content behind uncrawled search results with a
// bounded fan-out, marks them crawled, and appends extraction results with
// heuristic signals. Unfetchable pages (nil from the fetcher) are skipped
// without failing the stage. timeout bounds each fetch; zero applies the
// default.
func runExtractor(ctx context.Context, state *model.ResearchState, fetcher source.Fetcher, maxConcurrent, maxContentLen int, timeout time.Duration) error {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	// Indexes of uncrawled results, best quality first.
	candidates := make([]int, 0, len(state.SearchResults))
	for i, r := range state.SearchResults {
		if !r.Crawled {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return state.SearchResults[candidates[a]].Quality > state.SearchResults[candidates[b]].Quality
	})
	if len(candidates) > maxCrawlsPerPass {
		candidates = candidates[:maxCrawlsPerPass]
	}
	if len(candidates) == 0 {
		zap.L().Debug("extractor: nothing to crawl", zap.String("project_id", state.ProjectID))
		return nil
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, idx := range candidates {
		g.Go(func() error {
			result := state.SearchResults[idx]

			fCtx, cancel := context.WithTimeout(gCtx, timeout)
			page, err := fetcher.Fetch(fCtx, result.URL, maxContentLen)
			cancel()

			now := time.Now().UTC()
			mu.Lock()
			defer mu.Unlock()

			// Crawled flips exactly once, even for failed or empty fetches,
			// so loop-backs do not re-fetch dead URLs.
			state.SearchResults[idx].Crawled = true
			state.SearchResults[idx].CrawledAt = &now

			if err != nil {
				zap.L().Warn("extractor: fetch failed",
					zap.String("url", result.URL),
					zap.Error(err),
				)
				return nil
			}
			if page == nil || page.Content == "" {
				return nil
			}

			sig := extractSignals(page.Content)
			title := page.Title
			if title == "" {
				title = result.Title
			}
			state.ExtractedContent = append(state.ExtractedContent, model.ExtractionResult{
				URL:     result.URL,
				Source:  result.Source,
				Title:   title,
				Content: page.Content,
				Metadata: model.ExtractionMetadata{
					CrawledAt:     now,
					ContentLength: len(page.Content),
					QualityScore:  sig.quality,
					Features:      sig.features,
					Competitors:   sig.competitors,
					UseCases:      sig.useCases,
					TechStack:     sig.techStack,
				},
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	zap.L().Info("extractor: pass complete",
		zap.String("project_id", state.ProjectID),
		zap.Int("crawled", len(candidates)),
		zap.Int("extracted_total", len(state.ExtractedContent)),
	)
	return nil
}

package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/internal/source"
)

// defaultSearchTimeout bounds one provider call so a stalled upstream
// cannot hold the worker pool slot.
const defaultSearchTimeout = 30 * time.Second

// runSearcher executes every pending query against the source registry and
// appends deduplicated results. Queries run in priority order. Re-runs
// never reintroduce previously seen URLs or content. timeout bounds each
// provider call; zero applies the default.
func runSearcher(ctx context.Context, state *model.ResearchState, sources *source.Registry, perQueryLimit int, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	queries := append([]model.SearchQuery(nil), state.PendingQueries...)
	if len(queries) == 0 {
		return eris.New("searcher: no pending queries")
	}
	sort.SliceStable(queries, func(i, j int) bool { return queries[i].Priority > queries[j].Priority })

	seenURL := make(map[string]bool, len(state.SearchResults))
	seenHash := make(map[string]bool, len(state.SearchResults))
	for _, r := range state.SearchResults {
		seenURL[normalizeURL(r.URL)] = true
		if r.ContentHash != "" {
			seenHash[r.ContentHash] = true
		}
	}

	var failed int
	for _, q := range queries {
		provider := providerFor(sources, q.Dimension)
		if provider == nil {
			return eris.New("searcher: no source providers registered")
		}

		qCtx, cancel := context.WithTimeout(ctx, timeout)
		results, err := provider.Search(qCtx, q, perQueryLimit)
		cancel()
		if err != nil {
			failed++
			zap.L().Warn("searcher: query failed",
				zap.String("project_id", state.ProjectID),
				zap.String("provider", provider.Name()),
				zap.String("query", q.Query),
				zap.Error(err),
			)
			continue
		}

		added := 0
		for _, r := range results {
			key := normalizeURL(r.URL)
			if key == "" || seenURL[key] {
				continue
			}
			if r.ContentHash == "" {
				r.ContentHash = contentFingerprint(r.Content)
			}
			if r.ContentHash != "" && seenHash[r.ContentHash] {
				continue
			}
			seenURL[key] = true
			if r.ContentHash != "" {
				seenHash[r.ContentHash] = true
			}
			state.SearchResults = append(state.SearchResults, r)
			added++
		}
		zap.L().Debug("searcher: query done",
			zap.String("query", q.Query),
			zap.Int("results", len(results)),
			zap.Int("added", added),
		)
	}

	state.SearchIterations++
	state.TotalSearches += len(queries)
	state.PendingQueries = nil

	if failed == len(queries) {
		return eris.New("searcher: every query failed")
	}
	return nil
}

// providerFor routes a query to a provider by dimension: review queries go
// to the forum provider when one is registered, everything else to web.
// Falls back to any registered provider.
func providerFor(sources *source.Registry, dim model.Dimension) source.Provider {
	if dim == model.DimensionReviews {
		if p := sources.Get("forum"); p != nil {
			return p
		}
	}
	if p := sources.Get("web"); p != nil {
		return p
	}
	all := sources.All()
	if len(all) > 0 {
		return all[0]
	}
	return nil
}

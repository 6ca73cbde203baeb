package source

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/pkg/jina"
)

// WebProvider searches the open web through Jina AI Search.
type WebProvider struct {
	client  jina.Client
	limiter *rate.Limiter
}

// NewWebProvider creates a WebProvider throttled to rps requests per second.
func NewWebProvider(client jina.Client, rps float64) *WebProvider {
	if rps <= 0 {
		rps = 1
	}
	return &WebProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (p *WebProvider) Name() string { return "web" }

func (p *WebProvider) Search(ctx context.Context, query model.SearchQuery, limit int) ([]model.SearchResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "source: web rate limit")
	}

	resp, err := p.client.Search(ctx, query.Query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "source: web search")
	}

	results := make([]model.SearchResult, 0, len(resp.Data))
	for _, hit := range resp.Data {
		if strings.TrimSpace(hit.URL) == "" {
			continue
		}
		content := hit.Content
		if content == "" {
			content = hit.Description
		}
		results = append(results, model.SearchResult{
			ID:        uuid.NewString(),
			Source:    p.Name(),
			Title:     hit.Title,
			URL:       hit.URL,
			Content:   content,
			Quality:   scoreHit(hit.Title, content),
			QueryID:   query.ID,
			Dimension: query.Dimension,
		})
	}
	return results, nil
}

// scoreHit assigns a coarse 1-10 quality score from how much usable text a
// hit carries. Real ranking happens downstream during extraction.
func scoreHit(title, content string) int {
	score := 3
	if title != "" {
		score += 2
	}
	switch {
	case len(content) > 2000:
		score += 5
	case len(content) > 500:
		score += 3
	case len(content) > 100:
		score += 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/pkg/perplexity"
)

// ForumProvider surfaces discussion and community sources via Perplexity,
// which answers with cited URLs. Each citation becomes one result carrying
// the synthesized answer, tagged with the cited URL, as its content.
type ForumProvider struct {
	client  perplexity.Client
	limiter *rate.Limiter
}

// NewForumProvider creates a ForumProvider throttled to rps requests per
// second.
func NewForumProvider(client perplexity.Client, rps float64) *ForumProvider {
	if rps <= 0 {
		rps = 0.5
	}
	return &ForumProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (p *ForumProvider) Name() string { return "forum" }

func (p *ForumProvider) Search(ctx context.Context, query model.SearchQuery, limit int) ([]model.SearchResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "source: forum rate limit")
	}

	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: "Answer from forums, reviews, and community discussions. Cite sources."},
			{Role: "user", Content: fmt.Sprintf("%s (focus: %s)", query.Query, query.Purpose)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "source: forum search")
	}

	var answer string
	if len(resp.Choices) > 0 {
		answer = resp.Choices[0].Message.Content
	}

	results := make([]model.SearchResult, 0, len(resp.Citations))
	for i, cited := range resp.Citations {
		if i >= limit && limit > 0 {
			break
		}
		if strings.TrimSpace(cited) == "" {
			continue
		}
		results = append(results, model.SearchResult{
			ID:        uuid.NewString(),
			Source:    p.Name(),
			Title:     citationTitle(cited),
			URL:       cited,
			Content:   citationContent(cited, answer),
			Quality:   6,
			QueryID:   query.ID,
			Dimension: query.Dimension,
		})
	}
	return results, nil
}

// citationContent pairs the synthesized answer with its cited URL. The
// answer is shared across all citations of one completion; without the URL
// in the text, content-hash dedup downstream would collapse URL-distinct
// citations to the first one.
func citationContent(cited, answer string) string {
	if strings.TrimSpace(answer) == "" {
		return ""
	}
	return fmt.Sprintf("Source: %s\n\n%s", cited, answer)
}

// citationTitle derives a readable title from a cited URL.
func citationTitle(u string) string {
	t := strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	t = strings.TrimPrefix(t, "www.")
	if idx := strings.Index(t, "?"); idx >= 0 {
		t = t[:idx]
	}
	return strings.TrimSuffix(t, "/")
}

package source

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/pkg/firecrawl"
	"github.com/sells-group/research-orchestrator/pkg/jina"
)

// Page is the content of one fetched URL.
type Page struct {
	URL     string
	Title   string
	Content string
}

// Fetcher retrieves the content behind a URL. A (nil, nil) return means the
// URL is unfetchable and should be skipped rather than treated as a failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string, maxLen int) (*Page, error)
}

// circuitBreaker tracks consecutive failures to skip a flaky upstream.
type circuitBreaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	openUntil   time.Time
	threshold   int           // consecutive failures to trip
	window      time.Duration // failures must occur within this window
	cooldown    time.Duration // how long the circuit stays open
}

func newCircuitBreaker(threshold int, window, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
	}
}

func (cb *circuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return time.Now().Before(cb.openUntil)
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := time.Now()
	if now.Sub(cb.lastFailure) > cb.window {
		cb.failures = 0
	}
	cb.failures++
	cb.lastFailure = now
	if cb.failures >= cb.threshold {
		cb.openUntil = now.Add(cb.cooldown)
		zap.L().Warn("source: reader circuit breaker opened",
			zap.Int("failures", cb.failures),
			zap.Duration("cooldown", cb.cooldown),
		)
	}
}

// recordSuccess closes the circuit: a successful call after the cooldown
// must not leave a stale open deadline in place.
func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.openUntil = time.Time{}
}

// ChainFetcher tries Jina Reader first and falls back to Firecrawl. A
// circuit breaker on the reader (3 consecutive failures within 30s opens
// for 60s) routes straight to the fallback while the reader is struggling.
type ChainFetcher struct {
	reader   jina.Client
	fallback firecrawl.Client // optional
	breaker  *circuitBreaker
}

// NewChainFetcher creates a ChainFetcher. fallback may be nil.
func NewChainFetcher(reader jina.Client, fallback firecrawl.Client) *ChainFetcher {
	return &ChainFetcher{
		reader:   reader,
		fallback: fallback,
		breaker:  newCircuitBreaker(3, 30*time.Second, 60*time.Second),
	}
}

func (f *ChainFetcher) Fetch(ctx context.Context, url string, maxLen int) (*Page, error) {
	if !fetchable(url) {
		return nil, nil
	}

	var readerErr error
	if !f.breaker.isOpen() {
		resp, err := f.reader.Read(ctx, url)
		if err == nil && strings.TrimSpace(resp.Data.Content) != "" {
			f.breaker.recordSuccess()
			return clampPage(&Page{
				URL:     url,
				Title:   resp.Data.Title,
				Content: resp.Data.Content,
			}, maxLen), nil
		}
		f.breaker.recordFailure()
		readerErr = err
		zap.L().Debug("source: reader fetch failed, trying fallback",
			zap.String("url", url),
			zap.Error(err),
		)
	}

	if f.fallback == nil {
		if readerErr != nil {
			return nil, eris.Wrap(readerErr, "source: fetch")
		}
		return nil, nil
	}

	resp, err := f.fallback.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     url,
		Formats: []string{"markdown"},
	})
	if err != nil {
		return nil, eris.Wrap(err, "source: fallback fetch")
	}
	if !resp.Success || strings.TrimSpace(resp.Data.Markdown) == "" {
		return nil, nil
	}
	return clampPage(&Page{
		URL:     url,
		Title:   resp.Data.Title,
		Content: resp.Data.Markdown,
	}, maxLen), nil
}

// fetchable filters out URLs that never yield useful article content.
func fetchable(url string) bool {
	u := strings.ToLower(url)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return false
	}
	for _, ext := range []string{".pdf", ".zip", ".png", ".jpg", ".jpeg", ".gif", ".mp4", ".exe"} {
		if strings.HasSuffix(u, ext) {
			return false
		}
	}
	return true
}

func clampPage(p *Page, maxLen int) *Page {
	if maxLen > 0 && len(p.Content) > maxLen {
		p.Content = p.Content[:maxLen]
	}
	return p
}

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/internal/source"
)

// fakeProvider returns canned results per query, tagging them with the
// query's id and dimension like a real provider.
type fakeProvider struct {
	mu       sync.Mutex
	name     string
	perQuery int // results fabricated per query
	err      error
	calls    int
	urlSeq   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(_ context.Context, q model.SearchQuery, limit int) ([]model.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	n := f.perQuery
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]model.SearchResult, 0, n)
	for range n {
		f.urlSeq++
		out = append(out, model.SearchResult{
			ID:        uuid.NewString(),
			Source:    f.name,
			Title:     fmt.Sprintf("doc %d", f.urlSeq),
			URL:       fmt.Sprintf("https://example.com/%s/%d", f.name, f.urlSeq),
			Content:   fmt.Sprintf("unique content %s %d", f.name, f.urlSeq),
			Quality:   7,
			QueryID:   q.ID,
			Dimension: q.Dimension,
		})
	}
	return out, nil
}

// fakeFetcher serves rich IoT-flavored content for every URL so the
// extractor's heuristics find signals across all dimensions.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string // URL → content override
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, maxLen int) (*source.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	content, ok := f.pages[url]
	if !ok {
		content = richIoTContent
	}
	if content == "" {
		return nil, nil
	}
	if maxLen > 0 && len(content) > maxLen {
		content = content[:maxLen]
	}
	return &source.Page{URL: url, Title: "fetched " + url, Content: content}, nil
}

// richIoTContent trips every heuristic: feature bullets, competitor
// comparisons, use-case phrasing and tech keywords.
const richIoTContent = `# Industrial IoT Platform Overview

- Feature: real-time device telemetry ingestion
- Feature: edge gateway fleet management
- Feature: predictive maintenance alerts
- Feature: digital twin modeling
- Feature: OTA firmware updates
- Dashboards
- Alerting

The platform is an alternative to ThingWorx. Compared to AWS IoT Core, setup is simpler.
It is often positioned versus Azure IoT Hub in manufacturing deals.

Use case: predictive maintenance for rotating equipment.
It is designed for factory operations teams. The suite helps teams reduce unplanned downtime.
It is ideal for condition monitoring programs. Used by energy utilities for asset tracking.

Built on Kubernetes and Kafka with PostgreSQL storage, MQTT and OPC-UA connectivity, and a React frontend.
Plans start at $99/mo per site. Rated 4.5/5 by plant engineers.
The industrial IoT market is worth $263 billion and growing at 16.2% CAGR.`

// fakeGenerative returns a fixed response or error.
type fakeGenerative struct {
	response string
	err      error
	calls    int
	lastSys  string
}

func (f *fakeGenerative) Complete(_ context.Context, system, _ string, _ GenOptions) (string, error) {
	f.calls++
	f.lastSys = system
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// gatheredState fabricates a state that already passed the gathering
// stages with healthy coverage.
func gatheredState(title string) *model.ResearchState {
	state := model.NewResearchState(uuid.NewString(), title)
	state.Thresholds = model.DefaultThresholds()
	state.SearchIterations = 2
	state.TotalSearches = 12

	for i := range 12 {
		url := fmt.Sprintf("https://example.com/doc/%d", i)
		state.SearchResults = append(state.SearchResults, model.SearchResult{
			ID:      uuid.NewString(),
			Source:  "web",
			Title:   fmt.Sprintf("doc %d", i),
			URL:     url,
			Quality: 7,
			Crawled: true,
		})
	}

	sig := extractSignals(richIoTContent)
	state.ExtractedContent = append(state.ExtractedContent, model.ExtractionResult{
		URL:     "https://example.com/doc/0",
		Source:  "web",
		Title:   "doc 0",
		Content: richIoTContent,
		Metadata: model.ExtractionMetadata{
			ContentLength: len(richIoTContent),
			QualityScore:  sig.quality,
			Features:      sig.features,
			Competitors:   sig.competitors,
			UseCases:      sig.useCases,
			TechStack:     sig.techStack,
		},
	})
	return state
}

func registryWith(providers map[string]source.Provider) *source.Registry {
	r := source.NewRegistry()
	for kind, p := range providers {
		r.Register(kind, p)
	}
	return r
}

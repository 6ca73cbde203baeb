// Package source provides search providers and content fetchers backing the
// research pipeline.
package source

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/research-orchestrator/internal/model"
)

// Provider executes a planned query against one upstream and returns
// candidate sources. Implementations are safe for concurrent use.
type Provider interface {
	Search(ctx context.Context, query model.SearchQuery, limit int) ([]model.SearchResult, error)
	Name() string
}

// Registry holds providers keyed by kind ("web", "forum", ...). Mutation
// happens at wiring time; lookups afterward are read-only.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under the given kind, replacing any previous one.
func (r *Registry) Register(kind string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[kind] = p
}

// Get returns the provider registered under kind, or nil.
func (r *Registry) Get(kind string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[kind]
}

// All returns every registered provider in deterministic kind order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	out := make([]Provider, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, r.providers[k])
	}
	return out
}

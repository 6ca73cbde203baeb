package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/internal/backup"
	"github.com/sells-group/research-orchestrator/internal/checkpoint"
	"github.com/sells-group/research-orchestrator/internal/pipeline"
	"github.com/sells-group/research-orchestrator/internal/scheduler"
	"github.com/sells-group/research-orchestrator/internal/source"
	"github.com/sells-group/research-orchestrator/internal/store"
	anthropicpkg "github.com/sells-group/research-orchestrator/pkg/anthropic"
	"github.com/sells-group/research-orchestrator/pkg/firecrawl"
	"github.com/sells-group/research-orchestrator/pkg/jina"
	"github.com/sells-group/research-orchestrator/pkg/notion"
	"github.com/sells-group/research-orchestrator/pkg/perplexity"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "research.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// researchEnv holds the initialized store, checkpoint and backup layers, the
// stage graph, and the scheduler driving it. Built once per command.
type researchEnv struct {
	Store       store.Store
	Checkpoints *checkpoint.Store
	Backups     *backup.Manager
	Graph       *pipeline.Graph
	Scheduler   *scheduler.Scheduler
	Notion      notion.Client // nil when notion is not configured
}

// Close drains the scheduler and releases the store.
func (e *researchEnv) Close() {
	if e.Scheduler != nil {
		e.Scheduler.Stop()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, API clients, providers, graph, and scheduler.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*researchEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	checkpoints, err := checkpoint.NewStore(cfg.Data.CheckpointDir)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init checkpoint store")
	}

	backups, err := backup.NewManager(checkpoints, st, cfg.Data.BackupDir, cfg.Backup.MaxBackups)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init backup manager")
	}

	jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)
	firecrawlClient := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
	perplexityClient := perplexity.NewClient(cfg.Perplexity.Key, perplexity.WithBaseURL(cfg.Perplexity.BaseURL), perplexity.WithModel(cfg.Perplexity.Model))

	sources := source.NewRegistry()
	sources.Register("web", source.NewWebProvider(jinaClient, cfg.Search.RatePerSecond))
	sources.Register("forum", source.NewForumProvider(perplexityClient, cfg.Search.RatePerSecond))

	fetcher := source.NewChainFetcher(jinaClient, firecrawlClient)

	// Generative analysis is optional: without a key the analyzer and
	// reporter fall back to their deterministic paths.
	var generator pipeline.Generative
	if cfg.Pipeline.GenerativeMode && cfg.Anthropic.Key != "" {
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
		generator = pipeline.NewAnthropicGenerative(anthropicClient, cfg.Anthropic.Model)
	} else {
		zap.L().Info("generative analysis disabled, using rule-based fallback")
	}

	policy, err := pipeline.LoadScorePolicy(cfg.Pipeline.PolicyPath)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load score policy")
	}

	graph := pipeline.NewGraph(checkpoints, backups, pipeline.Collaborators{
		Sources:   sources,
		Fetcher:   fetcher,
		Generator: generator,
	}, pipeline.GraphOptions{
		Policy:             policy,
		PerQueryLimit:      cfg.Search.ResultsPerQuery,
		MaxFetchConcurrent: cfg.Fetch.MaxConcurrent,
		MaxContentLength:   cfg.Fetch.MaxContentLength,
		SearchTimeout:      time.Duration(cfg.Search.TimeoutSecs) * time.Second,
		FetchTimeout:       time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
	})

	sched := scheduler.New(st, checkpoints, graph, scheduler.Options{
		MaxPerOwner: cfg.Scheduler.MaxPerOwner,
		MaxWorkers:  cfg.Scheduler.MaxWorkers,
		MaxRetries:  cfg.Pipeline.MaxRetries,
	})

	var notionClient notion.Client
	if cfg.Notion.Token != "" {
		notionClient = notion.NewClient(cfg.Notion.Token)
	}

	return &researchEnv{
		Store:       st,
		Checkpoints: checkpoints,
		Backups:     backups,
		Graph:       graph,
		Scheduler:   sched,
		Notion:      notionClient,
	}, nil
}

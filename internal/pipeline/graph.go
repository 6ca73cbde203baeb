package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/internal/checkpoint"
	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/internal/resilience"
	"github.com/sells-group/research-orchestrator/internal/source"
)

var errNoAnalysis = eris.New("pipeline: reporter invoked without analysis")

// Collaborators bundles the external dependencies the stage workers call
// out to. Generator may be nil: the analyzer and reporter then use their
// deterministic fallbacks.
type Collaborators struct {
	Sources   *source.Registry
	Fetcher   source.Fetcher
	Generator Generative
}

// Backupper receives checkpoint events after each stage completion.
type Backupper interface {
	Create(projectID string) (*model.BackupRecord, error)
}

// GraphOptions tunes one Graph instance. Zero timeouts apply the worker
// defaults.
type GraphOptions struct {
	Policy             ScorePolicy
	PerQueryLimit      int
	MaxFetchConcurrent int
	MaxContentLength   int
	SearchTimeout      time.Duration
	FetchTimeout       time.Duration
}

// Graph sequences the stage workers for one research run, persisting state
// after every transition and applying the quality gate between gathering
// and analysis.
type Graph struct {
	checkpoints *checkpoint.Store
	backups     Backupper
	collab      Collaborators
	opts        GraphOptions
}

// NewGraph creates a Graph. backups may be nil to disable checkpoint-event
// snapshots.
func NewGraph(checkpoints *checkpoint.Store, backups Backupper, collab Collaborators, opts GraphOptions) *Graph {
	if opts.PerQueryLimit <= 0 {
		opts.PerQueryLimit = 5
	}
	if opts.MaxFetchConcurrent <= 0 {
		opts.MaxFetchConcurrent = 3
	}
	if opts.Policy.totalWeight() <= 0 {
		opts.Policy = DefaultScorePolicy()
	}
	return &Graph{
		checkpoints: checkpoints,
		backups:     backups,
		collab:      collab,
		opts:        opts,
	}
}

// stageProgress maps each stage to the progress reported on entry.
var stageProgress = map[model.Step]int{
	model.StepPlanner:   10,
	model.StepSearcher:  35,
	model.StepExtractor: 55,
	model.StepAnalyzer:  75,
	model.StepReporter:  90,
}

// Run drives the state machine from the state's current step to a terminal
// status. cancelled is polled between stages for cooperative cancellation;
// it may be nil. The returned error is the fatal pipeline failure, if any;
// cancellation is not an error.
func (g *Graph) Run(ctx context.Context, state *model.ResearchState, cancelled func() bool) error {
	log := zap.L().With(zap.String("project_id", state.ProjectID), zap.String("title", state.Title))
	log.Info("graph: run starting", zap.String("step", string(state.CurrentStep)))

	for !state.Status.Terminal() {
		if ctx.Err() != nil || (cancelled != nil && cancelled()) {
			state.Status = model.ResearchStatusCancelled
			state.SetProgress(state.Progress, "cancelled")
			g.persist(state, log)
			log.Info("graph: run cancelled", zap.String("step", string(state.CurrentStep)))
			return nil
		}

		if err := g.runStage(ctx, state); err != nil {
			state.Status = model.ResearchStatusFailed
			state.ProgressMessage = err.Error()
			g.persist(state, log)
			log.Error("graph: run failed", zap.String("step", string(state.CurrentStep)), zap.Error(err))
			return err
		}
	}

	log.Info("graph: run finished", zap.String("status", string(state.Status)))
	return nil
}

// runStage executes the worker for the current step on a working copy,
// commits it on success and decides the next transition. Every worker
// except the planner gets one in-place retry; each attempt starts from a
// fresh copy of the committed state so a failed attempt leaks nothing into
// the next. Planner failure is fatal because there is no meaningful state
// to retry against.
func (g *Graph) runStage(ctx context.Context, state *model.ResearchState) error {
	step := state.CurrentStep

	attempt := func(c context.Context) (*model.ResearchState, error) {
		work, err := cloneState(state)
		if err != nil {
			return nil, err
		}
		work.SetProgress(stageProgress[step], "running "+string(step))

		switch step {
		case model.StepPlanner:
			work.Status = model.ResearchStatusPlanning
			err = runPlanner(work)
		case model.StepSearcher:
			work.Status = model.ResearchStatusSearching
			err = runSearcher(c, work, g.collab.Sources, g.opts.PerQueryLimit, g.opts.SearchTimeout)
		case model.StepExtractor:
			work.Status = model.ResearchStatusExtracting
			err = runExtractor(c, work, g.collab.Fetcher, g.opts.MaxFetchConcurrent, g.opts.MaxContentLength, g.opts.FetchTimeout)
		case model.StepAnalyzer:
			work.Status = model.ResearchStatusAnalyzing
			err = runAnalyzer(c, work, g.collab.Generator, g.opts.Policy)
		case model.StepReporter:
			work.Status = model.ResearchStatusReporting
			err = runReporter(c, work, g.collab.Generator)
		default:
			err = eris.Errorf("graph: unknown step %q", step)
		}
		if err != nil {
			return nil, err
		}
		return work, nil
	}

	var work *model.ResearchState
	var err error
	if step == model.StepPlanner {
		work, err = attempt(ctx)
	} else {
		cfg := resilience.Stage()
		cfg.OnRetry = resilience.Logger("pipeline", string(step))
		work, err = resilience.DoVal(ctx, cfg, attempt)
	}
	if err != nil {
		return eris.Wrapf(err, "graph: %s", step)
	}

	g.advance(work)

	// Commit the working copy, then persist before progress is visible to
	// pollers, so a restart resumes from this stage rather than re-running
	// it.
	*state = *work
	g.persist(state, zap.L())
	return nil
}

// advance applies the transition out of a successfully completed stage,
// including the quality gate after extraction.
func (g *Graph) advance(state *model.ResearchState) {
	switch state.CurrentStep {
	case model.StepPlanner:
		state.CurrentStep = model.StepSearcher
	case model.StepSearcher:
		state.CurrentStep = model.StepExtractor
	case model.StepExtractor:
		decision := EvaluateGate(state, g.opts.Policy)
		zap.L().Info("graph: quality gate",
			zap.String("project_id", state.ProjectID),
			zap.Bool("advance", decision.Advance),
			zap.Float64("score", decision.Score),
			zap.String("weakest", string(decision.Weakest)),
			zap.String("reason", decision.Reason),
			zap.Int("retry_count", state.RetryCount),
		)
		if decision.Advance {
			state.CurrentStep = model.StepAnalyzer
		} else {
			state.RetryCount++
			state.CurrentStep = model.StepPlanner
			state.SetProgress(state.Progress, "gathering more sources: "+decision.Reason)
		}
	case model.StepAnalyzer:
		state.CurrentStep = model.StepReporter
	case model.StepReporter:
		state.Status = model.ResearchStatusCompleted
		state.SetProgress(100, "completed")
	}
}

// persist writes the checkpoint and fires the backup event. Persistence
// problems are logged, not fatal: the in-memory run can still finish.
func (g *Graph) persist(state *model.ResearchState, log *zap.Logger) {
	if g.checkpoints != nil {
		if err := g.checkpoints.Save(state); err != nil {
			log.Error("graph: checkpoint save failed", zap.Error(err))
			return
		}
	}
	if g.backups != nil {
		if _, err := g.backups.Create(state.ProjectID); err != nil {
			log.Warn("graph: checkpoint backup failed", zap.Error(err))
		}
	}
}

// cloneState deep-copies a ResearchState so stage failures never leak
// partial mutations into the committed state.
func cloneState(state *model.ResearchState) (*model.ResearchState, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, eris.Wrap(err, "graph: clone state")
	}
	var out model.ResearchState
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "graph: clone state")
	}
	return &out, nil
}

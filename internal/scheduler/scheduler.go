// Package scheduler admits research tasks, enforces per-owner and global
// concurrency limits, and drives one graph run per admitted task.
package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/research-orchestrator/internal/checkpoint"
	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/internal/store"
)

// Admission failures. Rejections are synchronous and leave no task record.
var (
	ErrOwnerLimit     = eris.New("scheduler: owner concurrency limit reached")
	ErrProjectBusy    = eris.New("scheduler: project is already processing or completed")
	ErrUnknownProject = eris.New("scheduler: project does not exist")
	ErrStopped        = eris.New("scheduler: stopped")
)

// Runner executes one research graph run to a terminal status.
type Runner interface {
	Run(ctx context.Context, state *model.ResearchState, cancelled func() bool) error
}

// Options tunes a Scheduler.
type Options struct {
	// MaxPerOwner is the per-owner in-flight ceiling. Default 3.
	MaxPerOwner int
	// MaxWorkers bounds total concurrent graph runs. Default 4.
	MaxWorkers int
	// MaxRetries overrides the loop-back budget for newly created runs.
	// Zero keeps the model default.
	MaxRetries int
}

// taskHandle is the in-memory registry entry for one in-flight task.
type taskHandle struct {
	task      model.ResearchTask
	topic     string
	cancelled atomic.Bool
}

// Scheduler owns the active-task registry under single-writer discipline:
// every admission and completion event mutates the registry while holding
// one mutex, so pollers always observe a consistent snapshot.
type Scheduler struct {
	store       store.Store
	checkpoints *checkpoint.Store
	runner      Runner
	opts        Options

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu        sync.Mutex
	active    map[string]*taskHandle // task id → handle, in-flight only
	byOwner   map[string]int
	byProject map[string]bool // project id → has an in-flight task
	stopped   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler. Call Stop to drain it.
func New(st store.Store, checkpoints *checkpoint.Store, runner Runner, opts Options) *Scheduler {
	if opts.MaxPerOwner <= 0 {
		opts.MaxPerOwner = 3
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:       st,
		checkpoints: checkpoints,
		runner:      runner,
		opts:        opts,
		sem:         semaphore.NewWeighted(int64(opts.MaxWorkers)),
		active:      make(map[string]*taskHandle),
		byOwner:     make(map[string]int),
		byProject:   make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Enqueue admits one research request. Admission is rejected synchronously,
// without creating a task record, when the owner is at the in-flight
// ceiling or the project is not in a restartable state. On success the
// returned task id is immediately pollable and a graph run is scheduled.
func (s *Scheduler) Enqueue(ctx context.Context, projectID, ownerID string) (string, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if eris.Is(err, store.ErrNotFound) {
		return "", ErrUnknownProject
	}
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return "", ErrStopped
	}
	if s.byOwner[ownerID] >= s.opts.MaxPerOwner {
		s.mu.Unlock()
		return "", ErrOwnerLimit
	}
	// The registry, not the store row, is the authority on in-flight
	// projects: the stored status only flips to processing after the lock
	// is released, so racing enqueues for one idle project would all see
	// a restartable snapshot. The stored status still rejects projects
	// already completed or left processing by another process.
	if s.byProject[projectID] || !project.Status.Restartable() {
		s.mu.Unlock()
		return "", ErrProjectBusy
	}
	// Reserve the owner and project slots before releasing the lock so
	// racing enqueues cannot overshoot the ceiling or double-admit.
	s.byOwner[ownerID]++
	s.byProject[projectID] = true
	s.mu.Unlock()

	task, err := s.store.CreateTask(ctx, projectID, ownerID)
	if err != nil {
		s.mu.Lock()
		s.byOwner[ownerID]--
		delete(s.byProject, projectID)
		s.mu.Unlock()
		return "", err
	}
	if err := s.store.UpdateProjectStatus(ctx, projectID, model.ProjectStatusProcessing, 0, "queued"); err != nil {
		zap.L().Warn("scheduler: project status update failed",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
	}

	handle := &taskHandle{task: *task, topic: project.Topic}
	s.mu.Lock()
	s.active[task.ID] = handle
	s.mu.Unlock()

	s.wg.Add(1)
	go s.execute(handle)

	zap.L().Info("scheduler: task admitted",
		zap.String("task_id", task.ID),
		zap.String("project_id", projectID),
		zap.String("owner_id", ownerID),
	)
	return task.ID, nil
}

// ActiveCount returns the number of in-flight (queued or running) tasks
// for an owner.
func (s *Scheduler) ActiveCount(ownerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byOwner[ownerID]
}

// ActiveProjects lists the projects with in-flight tasks; the backup
// interval ticker uses it.
func (s *Scheduler) ActiveProjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, h := range s.active {
		if !seen[h.task.ProjectID] {
			seen[h.task.ProjectID] = true
			out = append(out, h.task.ProjectID)
		}
	}
	return out
}

// Status returns the current task row.
func (s *Scheduler) Status(ctx context.Context, taskID string) (*model.ResearchTask, error) {
	return s.store.GetTask(ctx, taskID)
}

// Cancel flags an in-flight task for cooperative cancellation. The graph
// checks the flag between stages; an in-progress collaborator call is not
// aborted. Returns false for unknown or already terminal tasks.
func (s *Scheduler) Cancel(taskID string) bool {
	s.mu.Lock()
	handle, ok := s.active[taskID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	handle.cancelled.Store(true)
	zap.L().Info("scheduler: cancellation requested", zap.String("task_id", taskID))
	return true
}

// Trigger wakes the scheduler. Admission is processed eagerly on enqueue,
// so this is a compatibility hook for callers that batch admissions.
func (s *Scheduler) Trigger() {}

// Stop rejects further admissions and waits for in-flight runs to reach a
// terminal state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// execute runs one admitted task through the graph, bounded by the global
// worker semaphore.
func (s *Scheduler) execute(handle *taskHandle) {
	defer s.wg.Done()
	defer s.release(handle)

	taskID := handle.task.ID
	projectID := handle.task.ProjectID

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		s.finish(handle, model.TaskStatusCancelled, "scheduler stopped before start")
		return
	}
	defer s.sem.Release(1)

	if handle.cancelled.Load() {
		s.finish(handle, model.TaskStatusCancelled, "")
		return
	}

	ctx := context.Background()
	if err := s.store.UpdateTaskStatus(ctx, taskID, model.TaskStatusRunning, ""); err != nil {
		zap.L().Warn("scheduler: task status update failed", zap.String("task_id", taskID), zap.Error(err))
	}

	state, err := s.loadOrCreateState(projectID, handle.topic)
	if err != nil {
		s.finish(handle, model.TaskStatusFailed, err.Error())
		return
	}

	runErr := s.runner.Run(s.ctx, state, handle.cancelled.Load)
	switch {
	case runErr != nil:
		s.finish(handle, model.TaskStatusFailed, runErr.Error())
	case state.Status == model.ResearchStatusCancelled:
		s.finish(handle, model.TaskStatusCancelled, "")
	default:
		s.saveReport(ctx, state)
		s.finish(handle, model.TaskStatusCompleted, "")
	}
}

// saveReport copies the finished report document into the store so it can
// be served without reading the checkpoint file.
func (s *Scheduler) saveReport(ctx context.Context, state *model.ResearchState) {
	if state.Report == "" {
		return
	}
	var analysisJSON []byte
	if state.Analysis != nil {
		analysisJSON, _ = json.Marshal(state.Analysis)
	}
	if err := s.store.SaveReport(ctx, state.ProjectID, state.Report, analysisJSON); err != nil {
		zap.L().Warn("scheduler: report save failed",
			zap.String("project_id", state.ProjectID),
			zap.Error(err),
		)
	}
}

// loadOrCreateState resumes from the project's checkpoint when one exists
// and is non-terminal, otherwise starts fresh.
func (s *Scheduler) loadOrCreateState(projectID, topic string) (*model.ResearchState, error) {
	state, err := s.checkpoints.Load(projectID)
	if err != nil {
		zap.L().Warn("scheduler: checkpoint unreadable, starting fresh",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
	}
	if state != nil && !state.Status.Terminal() {
		zap.L().Info("scheduler: resuming from checkpoint",
			zap.String("project_id", projectID),
			zap.String("step", string(state.CurrentStep)),
		)
		return state, nil
	}
	fresh := model.NewResearchState(projectID, topic)
	if s.opts.MaxRetries > 0 {
		fresh.MaxRetries = s.opts.MaxRetries
	}
	return fresh, nil
}

// finish records the task's terminal status and rolls the project status
// to its externally visible outcome. A failed or cancelled run leaves the
// project restartable, never stranded in processing.
func (s *Scheduler) finish(handle *taskHandle, status model.TaskStatus, errMsg string) {
	ctx := context.Background()
	taskID := handle.task.ID
	projectID := handle.task.ProjectID

	if err := s.store.UpdateTaskStatus(ctx, taskID, status, errMsg); err != nil {
		zap.L().Error("scheduler: terminal task status update failed",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}

	var projectStatus model.ProjectStatus
	var progress int
	var message string
	switch status {
	case model.TaskStatusCompleted:
		projectStatus, progress, message = model.ProjectStatusCompleted, 100, "completed"
	case model.TaskStatusCancelled:
		projectStatus, progress, message = model.ProjectStatusIdle, 0, "cancelled"
	default:
		projectStatus, progress, message = model.ProjectStatusFailed, 0, errMsg
	}
	if err := s.store.UpdateProjectStatus(ctx, projectID, projectStatus, progress, message); err != nil {
		zap.L().Error("scheduler: project rollback failed",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
	}

	zap.L().Info("scheduler: task finished",
		zap.String("task_id", taskID),
		zap.String("status", string(status)),
	)
}

// release removes the task from the in-flight registry.
func (s *Scheduler) release(handle *taskHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, handle.task.ID)
	delete(s.byProject, handle.task.ProjectID)
	if s.byOwner[handle.task.OwnerID] > 0 {
		s.byOwner[handle.task.OwnerID]--
	}
	if s.byOwner[handle.task.OwnerID] == 0 {
		delete(s.byOwner, handle.task.OwnerID)
	}
}

// Package store persists tasks, projects, backup records and reports.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-orchestrator/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// TaskFilter specifies criteria for listing tasks.
type TaskFilter struct {
	OwnerID   string           `json:"owner_id,omitempty"`
	ProjectID string           `json:"project_id,omitempty"`
	Status    model.TaskStatus `json:"status,omitempty"`
	Limit     int              `json:"limit,omitempty"`
}

// Store defines the persistence interface for the orchestrator.
type Store interface {
	// Projects
	UpsertProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	UpdateProjectStatus(ctx context.Context, projectID string, status model.ProjectStatus, progress int, message string) error

	// Tasks
	CreateTask(ctx context.Context, projectID, ownerID string) (*model.ResearchTask, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status model.TaskStatus, errMsg string) error
	GetTask(ctx context.Context, taskID string) (*model.ResearchTask, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]model.ResearchTask, error)

	// Backup records
	InsertBackup(ctx context.Context, rec *model.BackupRecord) error
	GetBackup(ctx context.Context, recordID string) (*model.BackupRecord, error)
	ListBackups(ctx context.Context, projectID string) ([]model.BackupRecord, error)
	DeleteBackup(ctx context.Context, recordID string) error

	// Reports
	SaveReport(ctx context.Context, projectID, document string, analysisJSON []byte) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

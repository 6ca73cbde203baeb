package model

import "time"

// TaskStatus represents the lifecycle state of a research task.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the task can no longer change state.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// ResearchTask identifies one pipeline run. One task maps to exactly one
// ResearchState lifecycle. Tasks are created on admission, mutated only by
// the scheduler, and retained for audit and polling.
type ResearchTask struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	OwnerID   string     `json:"owner_id"`
	Status    TaskStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ProjectStatus is the externally visible state of a research project.
type ProjectStatus string

const (
	ProjectStatusIdle       ProjectStatus = "idle"
	ProjectStatusProcessing ProjectStatus = "processing"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusFailed     ProjectStatus = "failed"
)

// Project is the polling surface for one research topic. The scheduler owns
// the status column; a failed run rolls it back to a restartable state.
type Project struct {
	ID              string        `json:"id"`
	Topic           string        `json:"topic"`
	Status          ProjectStatus `json:"status"`
	Progress        int           `json:"progress"`
	ProgressMessage string        `json:"progress_message,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Restartable reports whether a new task may be admitted for the project.
func (p ProjectStatus) Restartable() bool {
	return p == ProjectStatusIdle || p == ProjectStatusFailed || p == ""
}

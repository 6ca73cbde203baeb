package model

import "time"

// BackupRecord indexes one retained checkpoint snapshot. Records are
// append-only and pruned FIFO by the backup manager's retention policy.
type BackupRecord struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

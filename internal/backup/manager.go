// Package backup snapshots checkpoint files with integrity digests and a
// bounded FIFO retention history.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/internal/checkpoint"
	"github.com/sells-group/research-orchestrator/internal/checksum"
	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/internal/store"
)

// Manager snapshots project checkpoints into a backup directory and keeps
// the record index in the store.
type Manager struct {
	checkpoints *checkpoint.Store
	records     store.Store
	dir         string
	maxBackups  int
}

// NewManager creates the backup directory if needed. maxBackups bounds the
// retained history per project; values below 1 fall back to 10.
func NewManager(checkpoints *checkpoint.Store, records store.Store, dir string, maxBackups int) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "backup: create dir")
	}
	if maxBackups < 1 {
		maxBackups = 10
	}
	return &Manager{
		checkpoints: checkpoints,
		records:     records,
		dir:         dir,
		maxBackups:  maxBackups,
	}, nil
}

// Create snapshots the current checkpoint of a project. Returns (nil, nil)
// when the project has no checkpoint yet: there is nothing to snapshot and
// that is not an error. Oldest records beyond the retention cap are evicted
// eagerly, FIFO by creation time.
func (m *Manager) Create(projectID string) (*model.BackupRecord, error) {
	data, err := m.checkpoints.Raw(projectID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	rec := &model.BackupRecord{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Checksum:  checksum.Sum(data),
		CreatedAt: time.Now().UTC(),
	}
	rec.Path = filepath.Join(m.dir, fmt.Sprintf("%s-%s.md", projectID, rec.ID))

	if err := os.WriteFile(rec.Path, data, 0o644); err != nil {
		return nil, eris.Wrap(err, "backup: write snapshot")
	}
	if err := m.records.InsertBackup(context.Background(), rec); err != nil {
		os.Remove(rec.Path)
		return nil, err
	}

	m.prune(projectID)
	return rec, nil
}

// Restore loads a snapshot, verifies its digest and decodes the state. A
// digest mismatch means corruption and always fails the restore; bad data
// is never returned.
func (m *Manager) Restore(ctx context.Context, projectID, recordID string) (*model.ResearchState, error) {
	rec, err := m.records.GetBackup(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.ProjectID != projectID {
		return nil, eris.Errorf("backup: record %s does not belong to project %s", recordID, projectID)
	}

	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return nil, eris.Wrap(err, "backup: read snapshot")
	}
	if !checksum.Verify(data, rec.Checksum) {
		return nil, eris.Errorf("backup: checksum mismatch for record %s, snapshot is corrupt", recordID)
	}
	return checkpoint.Decode(data)
}

// List returns the retained records for a project, newest first.
func (m *Manager) List(ctx context.Context, projectID string) ([]model.BackupRecord, error) {
	return m.records.ListBackups(ctx, projectID)
}

// Delete removes one record and its snapshot file. Reports whether a
// record was deleted.
func (m *Manager) Delete(ctx context.Context, recordID string) (bool, error) {
	rec, err := m.records.GetBackup(ctx, recordID)
	if eris.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := m.records.DeleteBackup(ctx, recordID); err != nil {
		return false, err
	}
	if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("backup: snapshot file removal failed",
			zap.String("path", rec.Path),
			zap.Error(err),
		)
	}
	return true, nil
}

// prune evicts the oldest records beyond the retention cap. Eviction
// follows creation order, not access order.
func (m *Manager) prune(projectID string) {
	ctx := context.Background()
	records, err := m.records.ListBackups(ctx, projectID)
	if err != nil {
		zap.L().Warn("backup: prune list failed", zap.String("project_id", projectID), zap.Error(err))
		return
	}
	if len(records) <= m.maxBackups {
		return
	}
	// ListBackups returns newest first.
	for _, old := range records[m.maxBackups:] {
		if _, err := m.Delete(ctx, old.ID); err != nil {
			zap.L().Warn("backup: prune delete failed",
				zap.String("record_id", old.ID),
				zap.Error(err),
			)
		}
	}
}

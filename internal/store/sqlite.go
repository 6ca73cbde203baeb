package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/research-orchestrator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id               TEXT PRIMARY KEY,
	topic            TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'idle',
	progress         INTEGER NOT NULL DEFAULT 0,
	progress_message TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	owner_id   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS backups (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	path       TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reports (
	project_id TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	analysis   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tasks_owner_status ON tasks(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_backups_project ON backups(project_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, topic, status, progress, progress_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   topic = excluded.topic,
		   status = excluded.status,
		   progress = excluded.progress,
		   progress_message = excluded.progress_message,
		   updated_at = excluded.updated_at`,
		p.ID, p.Topic, string(p.Status), p.Progress, p.ProgressMessage, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert project %s", p.ID)
}

func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, status, progress, progress_message, created_at, updated_at
		 FROM projects WHERE id = ?`, projectID)

	var p model.Project
	err := row.Scan(&p.ID, &p.Topic, &p.Status, &p.Progress, &p.ProgressMessage, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get project %s", projectID)
	}
	return &p, nil
}

func (s *SQLiteStore) UpdateProjectStatus(ctx context.Context, projectID string, status model.ProjectStatus, progress int, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ?, progress = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		string(status), progress, message, time.Now().UTC(), projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update project status %s", projectID)
	}
	return checkRowsAffected(res, "project", projectID)
}

func (s *SQLiteStore) CreateTask(ctx context.Context, projectID, ownerID string) (*model.ResearchTask, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, owner_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, projectID, ownerID, string(model.TaskStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert task")
	}

	return &model.ResearchTask{
		ID:        id,
		ProjectID: projectID,
		OwnerID:   ownerID,
		Status:    model.TaskStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID string, status model.TaskStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update task status %s", taskID)
	}
	return checkRowsAffected(res, "task", taskID)
}

func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*model.ResearchTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, owner_id, status, error, created_at, updated_at FROM tasks WHERE id = ?`,
		taskID,
	)

	var t model.ResearchTask
	err := row.Scan(&t.ID, &t.ProjectID, &t.OwnerID, &t.Status, &t.Error, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get task %s", taskID)
	}
	return &t, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]model.ResearchTask, error) {
	query := `SELECT id, project_id, owner_id, status, error, created_at, updated_at FROM tasks WHERE 1=1`
	var args []any

	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tasks")
	}
	defer rows.Close()

	var tasks []model.ResearchTask
	for rows.Next() {
		var t model.ResearchTask
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.OwnerID, &t.Status, &t.Error, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan task")
		}
		tasks = append(tasks, t)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: list tasks iterate")
}

func (s *SQLiteStore) InsertBackup(ctx context.Context, rec *model.BackupRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO backups (id, project_id, path, checksum, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectID, rec.Path, rec.Checksum, rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert backup")
}

func (s *SQLiteStore) GetBackup(ctx context.Context, recordID string) (*model.BackupRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, path, checksum, created_at FROM backups WHERE id = ?`, recordID)

	var rec model.BackupRecord
	err := row.Scan(&rec.ID, &rec.ProjectID, &rec.Path, &rec.Checksum, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get backup %s", recordID)
	}
	return &rec, nil
}

func (s *SQLiteStore) ListBackups(ctx context.Context, projectID string) ([]model.BackupRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, path, checksum, created_at FROM backups
		 WHERE project_id = ? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list backups")
	}
	defer rows.Close()

	var recs []model.BackupRecord
	for rows.Next() {
		var rec model.BackupRecord
		if err := rows.Scan(&rec.ID, &rec.ProjectID, &rec.Path, &rec.Checksum, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan backup")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list backups iterate")
}

func (s *SQLiteStore) DeleteBackup(ctx context.Context, recordID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, recordID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete backup %s", recordID)
	}
	return checkRowsAffected(res, "backup", recordID)
}

func (s *SQLiteStore) SaveReport(ctx context.Context, projectID, document string, analysisJSON []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (project_id, document, analysis, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET
		   document = excluded.document,
		   analysis = excluded.analysis,
		   created_at = excluded.created_at`,
		projectID, document, string(analysisJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save report %s", projectID)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/research-orchestrator/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id               TEXT PRIMARY KEY,
	topic            TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'idle',
	progress         INTEGER NOT NULL DEFAULT 0,
	progress_message TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	owner_id   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS backups (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	path       TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reports (
	project_id TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	analysis   TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tasks_owner_status ON tasks(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_backups_project ON backups(project_id, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, topic, status, progress, progress_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   topic = EXCLUDED.topic,
		   status = EXCLUDED.status,
		   progress = EXCLUDED.progress,
		   progress_message = EXCLUDED.progress_message,
		   updated_at = EXCLUDED.updated_at`,
		p.ID, p.Topic, string(p.Status), p.Progress, p.ProgressMessage, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert project %s", p.ID)
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, topic, status, progress, progress_message, created_at, updated_at
		 FROM projects WHERE id = $1`, projectID)

	var p model.Project
	err := row.Scan(&p.ID, &p.Topic, &p.Status, &p.Progress, &p.ProgressMessage, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get project %s", projectID)
	}
	return &p, nil
}

func (s *PostgresStore) UpdateProjectStatus(ctx context.Context, projectID string, status model.ProjectStatus, progress int, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET status = $1, progress = $2, progress_message = $3, updated_at = $4 WHERE id = $5`,
		string(status), progress, message, time.Now().UTC(), projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update project status %s", projectID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "project %s", projectID)
	}
	return nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, projectID, ownerID string) (*model.ResearchTask, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, project_id, owner_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, projectID, ownerID, string(model.TaskStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert task")
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

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskID string, status model.TaskStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), errMsg, time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update task status %s", taskID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "task %s", taskID)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (*model.ResearchTask, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, project_id, owner_id, status, error, created_at, updated_at FROM tasks WHERE id = $1`,
		taskID,
	)

	var t model.ResearchTask
	err := row.Scan(&t.ID, &t.ProjectID, &t.OwnerID, &t.Status, &t.Error, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get task %s", taskID)
	}
	return &t, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]model.ResearchTask, error) {
	query := `SELECT id, project_id, owner_id, status, error, created_at, updated_at FROM tasks WHERE 1=1`
	var args []any

	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		query += ` AND owner_id = $` + itoa(len(args))
	}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		query += ` AND project_id = $` + itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tasks")
	}
	defer rows.Close()

	var tasks []model.ResearchTask
	for rows.Next() {
		var t model.ResearchTask
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.OwnerID, &t.Status, &t.Error, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		tasks = append(tasks, t)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: list tasks iterate")
}

func (s *PostgresStore) InsertBackup(ctx context.Context, rec *model.BackupRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO backups (id, project_id, path, checksum, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.ProjectID, rec.Path, rec.Checksum, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert backup")
}

func (s *PostgresStore) GetBackup(ctx context.Context, recordID string) (*model.BackupRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, project_id, path, checksum, created_at FROM backups WHERE id = $1`, recordID)

	var rec model.BackupRecord
	err := row.Scan(&rec.ID, &rec.ProjectID, &rec.Path, &rec.Checksum, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get backup %s", recordID)
	}
	return &rec, nil
}

func (s *PostgresStore) ListBackups(ctx context.Context, projectID string) ([]model.BackupRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, path, checksum, created_at FROM backups
		 WHERE project_id = $1 ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list backups")
	}
	defer rows.Close()

	var recs []model.BackupRecord
	for rows.Next() {
		var rec model.BackupRecord
		if err := rows.Scan(&rec.ID, &rec.ProjectID, &rec.Path, &rec.Checksum, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan backup")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list backups iterate")
}

func (s *PostgresStore) DeleteBackup(ctx context.Context, recordID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM backups WHERE id = $1`, recordID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete backup %s", recordID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "backup %s", recordID)
	}
	return nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, projectID, document string, analysisJSON []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reports (project_id, document, analysis, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (project_id) DO UPDATE SET
		   document = EXCLUDED.document,
		   analysis = EXCLUDED.analysis,
		   created_at = EXCLUDED.created_at`,
		projectID, document, string(analysisJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save report %s", projectID)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

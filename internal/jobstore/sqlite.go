package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spigell/cv-ranker/internal/models"
)

// SQLiteStore keeps jobs in a SQLite database so status survives restarts.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL DEFAULT 'PENDING',
		payload BLOB,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, id string) (models.Job, error) {
	ts := now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, state, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, models.JobPending, ts.UnixMilli(), ts.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return models.Job{}, fmt.Errorf("%w: %s", ErrJobExists, id)
		}
		return models.Job{}, fmt.Errorf("failed to create job: %w", err)
	}

	return models.Job{ID: id, State: models.JobPending, CreatedAt: ts, UpdatedAt: ts}, nil
}

func (s *SQLiteStore) SetRunning(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	state, _, found, err := selectState(ctx, tx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	switch state {
	case models.JobRunning:
		return nil
	case models.JobSucceeded, models.JobFailed:
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, state)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET state = ?, updated_at = ? WHERE id = ?`,
		models.JobRunning, now().UnixMilli(), id,
	); err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Complete(ctx context.Context, id string, report models.ConsolidatedReport) (models.ConsolidatedReport, bool, error) {
	payload, err := models.EncodeReport(report)
	if err != nil {
		return models.ConsolidatedReport{}, false, err
	}

	won, state, existing, err := s.finish(ctx, id, models.JobSucceeded, payload)
	if err != nil {
		return models.ConsolidatedReport{}, false, err
	}
	if won {
		return report, true, nil
	}

	if state != models.JobSucceeded {
		return models.ConsolidatedReport{}, false, fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, state)
	}

	stored, err := models.DecodeReport(existing)
	if err != nil {
		return models.ConsolidatedReport{}, false, fmt.Errorf("job %s: %w", id, err)
	}
	return stored, false, nil
}

func (s *SQLiteStore) Fail(ctx context.Context, id string, reason string) (bool, error) {
	payload, err := models.EncodeFailure(reason)
	if err != nil {
		return false, err
	}

	won, _, _, err := s.finish(ctx, id, models.JobFailed, payload)
	return won, err
}

// finish moves a job into a terminal state unless it is already terminal.
// When it loses, the current state and payload are returned.
func (s *SQLiteStore) finish(ctx context.Context, id string, target models.JobState, payload []byte) (bool, models.JobState, []byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, "", nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now().UnixMilli()

	state, existing, found, err := selectState(ctx, tx, id)
	if err != nil {
		return false, "", nil, err
	}

	switch {
	case !found:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO jobs (id, state, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			id, target, payload, ts, ts,
		)
	case state.Terminal():
		return false, state, existing, nil
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET state = ?, payload = ?, updated_at = ? WHERE id = ? AND state IN (?, ?)`,
			target, payload, ts, id, models.JobPending, models.JobRunning,
		)
	}
	if err != nil {
		return false, "", nil, fmt.Errorf("failed to mark job %s: %w", strings.ToLower(string(target)), err)
	}

	if err := tx.Commit(); err != nil {
		return false, "", nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, target, payload, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.Job, bool, error) {
	var (
		state              models.JobState
		payload            []byte
		createdAt, updated int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT state, payload, created_at, updated_at FROM jobs WHERE id = ?`, id,
	).Scan(&state, &payload, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, fmt.Errorf("failed to get job: %w", err)
	}

	job, err := buildJob(id, state, time.UnixMilli(createdAt), time.UnixMilli(updated), payload)
	if err != nil {
		return models.Job{}, true, err
	}
	return job, true, nil
}

func selectState(ctx context.Context, tx *sql.Tx, id string) (models.JobState, []byte, bool, error) {
	var (
		state   models.JobState
		payload []byte
	)

	err := tx.QueryRowContext(ctx, `SELECT state, payload FROM jobs WHERE id = ?`, id).Scan(&state, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, fmt.Errorf("failed to get job state: %w", err)
	}

	return state, payload, true, nil
}

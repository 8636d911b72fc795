package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/complyscan/complyscan/internal/logger"
	"github.com/complyscan/complyscan/models"
)

// PostgresStore implements Store on a Postgres connection.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id              TEXT PRIMARY KEY,
	repository_url  TEXT NOT NULL,
	token           TEXT NOT NULL DEFAULT '',
	user_id         TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	grade           TEXT NOT NULL DEFAULT '',
	commit_id       TEXT NOT NULL DEFAULT '',
	certificate_url TEXT NOT NULL DEFAULT '',
	inventory_url   TEXT NOT NULL DEFAULT '',
	last_error      TEXT NOT NULL DEFAULT '',
	warnings        TEXT[] NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS scans_cache_idx ON scans (repository_url, commit_id, status);
`

// InitSchema creates the scans table if it does not exist yet.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertJob(ctx context.Context, job *models.ScanJob) error {
	start := time.Now()
	defer logger.Trace("InsertJob", start)

	const query = `
		INSERT INTO scans (id, repository_url, token, user_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.DB.ExecContext(ctx, query,
		job.ID, job.RepositoryURL, job.Token, job.UserID, job.Status, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.ScanJob, error) {
	const query = selectColumns + ` FROM scans WHERE id = $1`
	return s.scanRow(s.DB.QueryRowContext(ctx, query, id))
}

// ClaimJob performs the transition into RUNNING. A redelivered RUNNING
// job (expired lease) or ERROR job (queue retry) is claimable again;
// COMPLETED is final and never regresses.
func (s *PostgresStore) ClaimJob(ctx context.Context, id string) (*models.ScanJob, bool, error) {
	start := time.Now()
	defer logger.Trace("ClaimJob", start)

	const query = `
		UPDATE scans SET status = $1
		WHERE id = $2 AND status <> $3
		RETURNING ` + returningColumns
	job, err := s.scanRow(s.DB.QueryRowContext(ctx, query, models.StatusRunning, id, models.StatusCompleted))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("claim job %s: %w", id, err)
	}
	return job, true, nil
}

// CompleteJob records grade, commit and artifact links atomically with
// the status change, and drops the credential token from the record.
func (s *PostgresStore) CompleteJob(ctx context.Context, id string, c Completion) error {
	start := time.Now()
	defer logger.Trace("CompleteJob", start)

	const query = `
		UPDATE scans SET
			status = $1, grade = $2, commit_id = $3,
			certificate_url = $4, inventory_url = $5,
			warnings = $6, token = '', finished_at = $7
		WHERE id = $8 AND status = $9`
	res, err := s.DB.ExecContext(ctx, query,
		models.StatusCompleted, c.Grade, c.CommitID,
		c.CertificateURL, c.InventoryURL,
		pq.Array(normalizeWarnings(c.Warnings)), time.Now(), id, models.StatusRunning)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("complete job %s: not in RUNNING state", id)
	}
	return nil
}

func (s *PostgresStore) FailJob(ctx context.Context, id, message string) error {
	start := time.Now()
	defer logger.Trace("FailJob", start)

	const query = `
		UPDATE scans SET status = $1, last_error = $2, token = '', finished_at = $3
		WHERE id = $4 AND status <> $5`
	if _, err := s.DB.ExecContext(ctx, query,
		models.StatusError, message, time.Now(), id, models.StatusCompleted); err != nil {
		return fmt.Errorf("fail job %s: %w", id, err)
	}
	return nil
}

// FindCompleted is the cache lookup: the most recent COMPLETED scan of
// the same repository at the same commit.
func (s *PostgresStore) FindCompleted(ctx context.Context, repoURL, commitID string) (*models.ScanJob, bool, error) {
	if commitID == "" {
		return nil, false, nil
	}
	const query = selectColumns + `
		FROM scans
		WHERE repository_url = $1 AND commit_id = $2 AND status = $3
		ORDER BY finished_at DESC
		LIMIT 1`
	job, err := s.scanRow(s.DB.QueryRowContext(ctx, query, repoURL, commitID, models.StatusCompleted))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}
	return job, true, nil
}

const returningColumns = `
	id, repository_url, token, user_id, status, grade, commit_id,
	certificate_url, inventory_url, last_error, warnings, created_at, finished_at`

const selectColumns = `SELECT ` + returningColumns

func (s *PostgresStore) scanRow(row *sql.Row) (*models.ScanJob, error) {
	var job models.ScanJob
	var warnings pq.StringArray
	var finishedAt sql.NullTime
	err := row.Scan(
		&job.ID, &job.RepositoryURL, &job.Token, &job.UserID, &job.Status,
		&job.Grade, &job.CommitID, &job.CertificateURL, &job.InventoryURL,
		&job.LastError, &warnings, &job.CreatedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	job.Warnings = warnings
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	return &job, nil
}

func normalizeWarnings(w []string) []string {
	if w == nil {
		return []string{}
	}
	return w
}

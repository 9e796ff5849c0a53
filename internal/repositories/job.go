package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

// JobRepository stores snapshots of jobs observed by the poller, one row per backend job id.
type JobRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db, now: time.Now}
}

// JobFilter narrows [JobRepository.List]. Zero values match everything.
type JobFilter struct {
	Status    models.JobStatus
	Direction models.Direction
	Limit     int
}

const jobColumns = `
	id, sequence, job_id, direction, playlist_name, status, songs_total,
	songs_found, songs_skipped, error_message, notes, created_at, updated_at
`

// Upsert records the latest snapshot of a job.
//
// The first snapshot of a job gets an id and sequence number; later ones update it in place.
// An empty playlist name or a snapshot without songs keeps the values already stored.
func (r *JobRepository) Upsert(ctx context.Context, rec *models.JobRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var existing string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM jobs WHERE job_id = ?", rec.JobID).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		sequence, err := NextSequence(r.db, "jobs")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		rec.ID = shared.GenerateID()
		rec.Sequence = sequence
	case err != nil:
		return fmt.Errorf("failed to look up job: %w", err)
	default:
		rec.ID = existing
	}

	now := r.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	direction := rec.Direction
	if direction == "" {
		direction = models.Forward
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			direction = excluded.direction,
			playlist_name = CASE WHEN excluded.playlist_name = '' THEN jobs.playlist_name ELSE excluded.playlist_name END,
			status = excluded.status,
			songs_total = CASE WHEN excluded.songs_total = 0 THEN jobs.songs_total ELSE excluded.songs_total END,
			songs_found = CASE WHEN excluded.songs_total = 0 THEN jobs.songs_found ELSE excluded.songs_found END,
			songs_skipped = CASE WHEN excluded.songs_total = 0 THEN jobs.songs_skipped ELSE excluded.songs_skipped END,
			error_message = excluded.error_message,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Sequence,
		rec.JobID,
		direction,
		rec.PlaylistName,
		rec.Status,
		rec.SongsTotal,
		rec.SongsFound,
		rec.SongsSkipped,
		nullable(rec.ErrorMessage),
		nullable(rec.Notes),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job: %w", err)
	}
	return nil
}

// Get retrieves the snapshot of a backend job id
func (r *JobRepository) Get(ctx context.Context, jobID string) (*models.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = ?`

	rec, err := scanJob(r.db.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, jobID)
	}
	return rec, err
}

// List returns snapshots matching f, most recently first seen first.
func (r *JobRepository) List(ctx context.Context, f JobFilter) ([]*models.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1 = 1`
	args := []any{}

	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Direction != "" {
		query += " AND direction = ?"
		args = append(args, f.Direction)
	}

	query += " ORDER BY sequence DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var records []*models.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Prune deletes all but the keep most recent snapshots and returns how many were removed.
func (r *JobRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must not be negative", shared.ErrInvalidArgument)
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE id NOT IN (SELECT id FROM jobs ORDER BY sequence DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanJob reads one row from [sql.Row] or [sql.Rows]. [sql.ErrNoRows] is returned unwrapped.
func scanJob(s scanner) (*models.JobRecord, error) {
	var (
		rec          models.JobRecord
		direction    string
		status       string
		errorMessage sql.NullString
		notes        sql.NullString
	)

	err := s.Scan(
		&rec.ID, &rec.Sequence, &rec.JobID, &direction, &rec.PlaylistName, &status,
		&rec.SongsTotal, &rec.SongsFound, &rec.SongsSkipped, &errorMessage, &notes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	rec.Direction = models.Direction(direction)
	rec.Status = models.JobStatus(status)
	if errorMessage.Valid {
		rec.ErrorMessage = errorMessage.String
	}
	if notes.Valid {
		rec.Notes = notes.String
	}
	return &rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

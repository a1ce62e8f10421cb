package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"printerbot/internal/models"
)

const (
	defaultRecentJobs = 20

	upsertJobSQL = `
		INSERT INTO print_jobs (id, filename, started_at, ended_at, outcome, progress, elapsed_s, filament_mm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ended_at=excluded.ended_at,
			outcome=excluded.outcome,
			progress=excluded.progress,
			elapsed_s=excluded.elapsed_s,
			filament_mm=excluded.filament_mm
	`

	selectRecentJobsSQL = `
		SELECT id, filename, started_at, ended_at, outcome, progress, elapsed_s, filament_mm
		FROM print_jobs ORDER BY started_at DESC LIMIT ?
	`
)

type JobSQLite struct {
	db *sql.DB
}

func NewJobSQLite(db *sql.DB) *JobSQLite {
	return &JobSQLite{db: db}
}

// nullTime stores zero times as NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Save inserts the job or updates its outcome fields when the id exists.
func (r *JobSQLite) Save(ctx context.Context, j models.PrintJob) error {
	started := j.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertJobSQL,
		j.JobID,
		j.Filename,
		started.UTC(),
		nullTime(j.EndedAt),
		j.Outcome,
		j.Progress,
		j.ElapsedSec,
		j.FilamentUsed,
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", j.JobID, err)
	}
	return nil
}

// Recent returns the newest jobs first.
func (r *JobSQLite) Recent(ctx context.Context, limit int) ([]models.PrintJob, error) {
	if limit <= 0 {
		limit = defaultRecentJobs
	}
	rows, err := r.db.QueryContext(ctx, selectRecentJobsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []models.PrintJob
	for rows.Next() {
		var j models.PrintJob
		var ended sql.NullTime
		if err := rows.Scan(&j.JobID, &j.Filename, &j.StartedAt, &ended, &j.Outcome, &j.Progress, &j.ElapsedSec, &j.FilamentUsed); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.StartedAt = j.StartedAt.UTC()
		if ended.Valid {
			j.EndedAt = ended.Time.UTC()
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"vanguard/internal/domain"
	"vanguard/internal/ports"
)

var _ ports.JobRepository = (*DB)(nil)

// Rows written by the first schema revision may carry NULLs.
const jobColumns = `id, COALESCE(target, ''), COALESCE(cost, 0), COALESCE(status, 'PENDING'), COALESCE(pdf, ''), created_at, updated_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	var status string
	if err := row.Scan(&j.ID, &j.Target, &j.Cost, &status, &j.PDF, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return domain.Job{}, err
	}
	j.Status = domain.JobStatus(status)
	return j, nil
}

// Create inserts a new PENDING job. Duplicate targets are allowed.
func (db *DB) Create(ctx context.Context, target string, cost int, pdf string) (domain.Job, error) {
	var job domain.Job
	attrs := []attribute.KeyValue{attribute.String("method", "Create"), attribute.String("target", target)}
	err := db.executeAndTrace(ctx, "postgres.jobs.create", attrs, func(ctx context.Context) error {
		var err error
		job, err = scanJob(db.Pool.QueryRow(ctx, `
			INSERT INTO vanguard_jobs (target, cost, status, pdf)
			VALUES ($1, $2, $3, $4)
			RETURNING `+jobColumns,
			target, cost, string(domain.JobPending), pdf))
		return err
	})
	if err != nil {
		return domain.Job{}, fmt.Errorf("jobs.Create: %w", err)
	}
	return job, nil
}

func (db *DB) Get(ctx context.Context, id int64) (domain.Job, error) {
	var job domain.Job
	attrs := []attribute.KeyValue{attribute.String("method", "Get"), attribute.Int64("job_id", id)}
	err := db.executeAndTrace(ctx, "postgres.jobs.get", attrs, func(ctx context.Context) error {
		var err error
		job, err = scanJob(db.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM vanguard_jobs WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("jobs.Get: %w", err)
	}
	return job, nil
}

// MarkFixed moves one PENDING job to FIXED. A job that is already FIXED
// yields domain.ErrAlreadyFixed.
func (db *DB) MarkFixed(ctx context.Context, id int64, pdf string) (domain.Job, error) {
	var job domain.Job
	attrs := []attribute.KeyValue{attribute.String("method", "MarkFixed"), attribute.Int64("job_id", id)}
	err := db.executeAndTrace(ctx, "postgres.jobs.mark_fixed", attrs, func(ctx context.Context) error {
		var err error
		job, err = scanJob(db.Pool.QueryRow(ctx, `
			UPDATE vanguard_jobs SET status = $2, pdf = $3, updated_at = now()
			WHERE id = $1 AND status = $4
			RETURNING `+jobColumns,
			id, string(domain.JobFixed), pdf, string(domain.JobPending)))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := db.Get(ctx, id); getErr != nil {
			return domain.Job{}, getErr
		}
		return domain.Job{}, domain.ErrAlreadyFixed
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("jobs.MarkFixed: %w", err)
	}
	return job, nil
}

// MarkLatestFixed fixes the newest PENDING job for target. The row lock keeps
// two concurrent fixes for the same target from both claiming it.
func (db *DB) MarkLatestFixed(ctx context.Context, target string, pdf string) (domain.Job, error) {
	var job domain.Job
	attrs := []attribute.KeyValue{attribute.String("method", "MarkLatestFixed"), attribute.String("target", target)}
	err := db.executeAndTrace(ctx, "postgres.jobs.mark_latest_fixed", attrs, func(ctx context.Context) error {
		var err error
		job, err = scanJob(db.Pool.QueryRow(ctx, `
			UPDATE vanguard_jobs SET status = $2, pdf = $3, updated_at = now()
			WHERE id = (
				SELECT id FROM vanguard_jobs
				WHERE target = $1 AND status = $4
				ORDER BY id DESC
				LIMIT 1
				FOR UPDATE
			)
			RETURNING `+jobColumns,
			target, string(domain.JobFixed), pdf, string(domain.JobPending)))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("jobs.MarkLatestFixed: %w", err)
	}
	return job, nil
}

// List returns all jobs, most recent first. The table is unbounded.
func (db *DB) List(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	attrs := []attribute.KeyValue{attribute.String("method", "List")}
	err := db.executeAndTrace(ctx, "postgres.jobs.list", attrs, func(ctx context.Context) error {
		rows, err := db.Pool.Query(ctx, `SELECT `+jobColumns+` FROM vanguard_jobs ORDER BY id DESC`)
		if err != nil {
			return err
		}
		jobs, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Job, error) {
			return scanJob(row)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("jobs.List: %w", err)
	}
	return jobs, nil
}

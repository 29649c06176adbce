package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parroquia-tools/turnos-api/internal/models"
)

// ExportJobRepository provides database access for asynchronous export
// job tracking.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository creates a new instance of ExportJobRepository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

const exportJobColumns = `id, schedule_id, params, status, progress, result_url, created_by, created_at, finished_at, error_message`

// Create inserts a queued export job.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	const query = `INSERT INTO export_jobs (id, schedule_id, params, status, progress, result_url, created_by, created_at, finished_at, error_message)
		VALUES (:id, :schedule_id, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindByID returns one export job.
func (r *ExportJobRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM export_jobs WHERE id = $1 LIMIT 1`, exportJobColumns)
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateProgress moves a job through its lifecycle.
func (r *ExportJobRepository) UpdateProgress(ctx context.Context, id string, status models.ExportStatus, progress int) error {
	const query = `UPDATE export_jobs SET status = $2, progress = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, progress)
	if err != nil {
		return fmt.Errorf("update export job progress: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update export job progress rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkFinished records a successful run and its download URL.
func (r *ExportJobRepository) MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error {
	const query = `UPDATE export_jobs SET status = $2, progress = 100, result_url = $3, finished_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFinished, resultURL, finishedAt)
	if err != nil {
		return fmt.Errorf("mark export job finished: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark export job finished rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkFailed records a failed run with its error message.
func (r *ExportJobRepository) MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error {
	const query = `UPDATE export_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFailed, message, finishedAt)
	if err != nil {
		return fmt.Errorf("mark export job failed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark export job failed rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListBySchedule returns a schedule's export jobs, newest first.
func (r *ExportJobRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.ExportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM export_jobs WHERE schedule_id = $1 ORDER BY created_at DESC`, exportJobColumns)
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}

// ListQueued returns jobs still waiting for a worker, oldest first.
func (r *ExportJobRepository) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM export_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, exportJobColumns)
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, models.ExportStatusQueued, limit); err != nil {
		return nil, fmt.Errorf("list queued export jobs: %w", err)
	}
	return jobs, nil
}

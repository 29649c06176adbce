package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/parroquia-tools/turnos-api/internal/models"
)

// JobRepository provides database access for jobs and their positions.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new instance of JobRepository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, name, description, people_required, color, active, created_at, updated_at`

// List returns jobs ordered by name, with positions attached. When active is
// non-nil only jobs in that state are returned.
func (r *JobRepository) List(ctx context.Context, active *bool) ([]models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs`, jobColumns)
	var args []interface{}
	if active != nil {
		query += ` WHERE active = $1`
		args = append(args, *active)
	}
	query += ` ORDER BY name ASC, id ASC`

	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if err := r.attachPositions(ctx, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindByID returns a job with positions loaded.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1 LIMIT 1`, jobColumns)
	var job models.Job
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	jobs := []models.Job{job}
	if err := r.attachPositions(ctx, jobs); err != nil {
		return nil, err
	}
	return &jobs[0], nil
}

// FindByName returns a job by its unique name.
func (r *JobRepository) FindByName(ctx context.Context, name string) (*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE LOWER(name) = LOWER($1) LIMIT 1`, jobColumns)
	var job models.Job
	if err := r.db.GetContext(ctx, &job, query, name); err != nil {
		return nil, err
	}
	jobs := []models.Job{job}
	if err := r.attachPositions(ctx, jobs); err != nil {
		return nil, err
	}
	return &jobs[0], nil
}

// Create inserts a new job.
func (r *JobRepository) Create(ctx context.Context, exec sqlx.ExtContext, job *models.Job) error {
	if exec == nil {
		exec = r.db
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	const query = `INSERT INTO jobs (id, name, description, people_required, color, active, created_at, updated_at)
		VALUES (:id, :name, :description, :people_required, :color, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Update updates mutable fields of a job.
func (r *JobRepository) Update(ctx context.Context, exec sqlx.ExtContext, job *models.Job) error {
	if exec == nil {
		exec = r.db
	}
	job.UpdatedAt = time.Now().UTC()
	const query = `UPDATE jobs SET name = :name, description = :description, people_required = :people_required, color = :color, active = :active, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, exec, query, job)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate marks a job inactive. Historical assignments keep referencing it.
func (r *JobRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE jobs SET active = FALSE, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate job rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplacePositions rewrites the job_positions rows for a job. Position
// numbers are assigned 1..n in slice order.
func (r *JobRepository) ReplacePositions(ctx context.Context, exec sqlx.ExtContext, jobID string, names []string) error {
	if exec == nil {
		exec = r.db
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM job_positions WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("clear job positions: %w", err)
	}
	for i, name := range names {
		const insert = `INSERT INTO job_positions (id, job_id, position_number, name) VALUES ($1, $2, $3, $4)`
		if _, err := exec.ExecContext(ctx, insert, uuid.NewString(), jobID, i+1, name); err != nil {
			return fmt.Errorf("insert job position: %w", err)
		}
	}
	return nil
}

func (r *JobRepository) attachPositions(ctx context.Context, jobs []models.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	ids := make([]string, len(jobs))
	index := make(map[string]int, len(jobs))
	for i := range jobs {
		ids[i] = jobs[i].ID
		index[jobs[i].ID] = i
	}

	var positions []models.JobPosition
	const query = `SELECT id, job_id, position_number, name FROM job_positions WHERE job_id = ANY($1) ORDER BY job_id, position_number`
	if err := r.db.SelectContext(ctx, &positions, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load job positions: %w", err)
	}
	for _, pos := range positions {
		i, ok := index[pos.JobID]
		if !ok {
			continue
		}
		jobs[i].Positions = append(jobs[i].Positions, pos)
	}
	return nil
}

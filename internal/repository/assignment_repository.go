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

// AssignmentRepository provides database access for schedule slots.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new instance of AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentDetailQuery = `SELECT a.id, a.service_date_id, a.job_id, a.position, a.person_id, a.position_name, a.manual_override, a.created_at, a.updated_at,
	sd.schedule_id, sd.service_date, j.name AS job_name,
	CASE WHEN p.id IS NULL THEN NULL ELSE TRIM(p.first_name || ' ' || p.last_name) END AS person_name
	FROM assignments a
	JOIN service_dates sd ON sd.id = a.service_date_id
	JOIN jobs j ON j.id = a.job_id
	LEFT JOIN people p ON p.id = a.person_id`

// BulkCreate inserts assignment rows, empty slots included. Generated
// identifiers are written back into the slice.
func (r *AssignmentRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error {
	if exec == nil {
		exec = r.db
	}
	now := time.Now().UTC()
	const query = `INSERT INTO assignments (id, service_date_id, job_id, position, person_id, position_name, manual_override, created_at, updated_at)
		VALUES (:id, :service_date_id, :job_id, :position, :person_id, :position_name, :manual_override, :created_at, :updated_at)`
	for i := range assignments {
		if assignments[i].ID == "" {
			assignments[i].ID = uuid.NewString()
		}
		if assignments[i].CreatedAt.IsZero() {
			assignments[i].CreatedAt = now
		}
		assignments[i].UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, exec, query, assignments[i]); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}
	return nil
}

// ListBySchedule returns every slot of a schedule with display fields,
// ordered by date, job name and position.
func (r *AssignmentRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.AssignmentDetail, error) {
	query := assignmentDetailQuery + `
	WHERE sd.schedule_id = $1
	ORDER BY sd.service_date ASC, j.name ASC, a.position ASC`
	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule assignments: %w", err)
	}
	return details, nil
}

// ListByPerson returns a person's slots on published schedules from the
// given date forward.
func (r *AssignmentRepository) ListByPerson(ctx context.Context, personID string, from time.Time) ([]models.AssignmentDetail, error) {
	query := assignmentDetailQuery + `
	JOIN schedules s ON s.id = sd.schedule_id
	WHERE a.person_id = $1 AND s.status = $2 AND sd.service_date >= $3
	ORDER BY sd.service_date ASC, j.name ASC, a.position ASC`
	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, personID, models.SchedulePublished, from); err != nil {
		return nil, fmt.Errorf("list person assignments: %w", err)
	}
	return details, nil
}

// FindByID returns one slot with display fields.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	query := assignmentDetailQuery + ` WHERE a.id = $1 LIMIT 1`
	var detail models.AssignmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// UpdatePerson rewrites the occupant of a slot. A nil person empties the
// slot; the row itself always stays.
func (r *AssignmentRepository) UpdatePerson(ctx context.Context, exec sqlx.ExtContext, id string, personID *string, manualOverride bool) error {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE assignments SET person_id = $2, manual_override = $3, updated_at = $4 WHERE id = $1`
	result, err := exec.ExecContext(ctx, query, id, personID, manualOverride, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update assignment person: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update assignment person rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

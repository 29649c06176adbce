package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parroquia-tools/turnos-api/internal/models"
)

// ScheduleRepository provides database access for monthly schedules and
// their service dates.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new instance of ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, year, month, name, status, created_at, updated_at`

// Create inserts a schedule row. The (year, month) unique key surfaces as a
// pq unique violation for the service layer to map.
func (r *ScheduleRepository) Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error {
	if exec == nil {
		exec = r.db
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	if schedule.Status == "" {
		schedule.Status = models.ScheduleDraft
	}

	const query = `INSERT INTO schedules (id, year, month, name, status, created_at, updated_at)
		VALUES (:id, :year, :month, :name, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// FindByID returns a schedule by identifier.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE id = $1 LIMIT 1`, scheduleColumns)
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindByYearMonth returns the schedule for a month, if any.
func (r *ScheduleRepository) FindByYearMonth(ctx context.Context, year, month int) (*models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE year = $1 AND month = $2 LIMIT 1`, scheduleColumns)
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, year, month); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// List returns schedules matching the filter, newest month first.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, error) {
	baseQuery := `FROM schedules WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, *filter.Year)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY year DESC, month DESC", scheduleColumns, baseQuery)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// UpdateStatus transitions the schedule lifecycle state.
func (r *ScheduleRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ScheduleStatus) error {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE schedules SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := exec.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule status rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a schedule. Service dates and assignments cascade.
func (r *ScheduleRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if exec == nil {
		exec = r.db
	}
	const query = `DELETE FROM schedules WHERE id = $1`
	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schedule rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateServiceDates inserts the Sunday rows belonging to a schedule.
// Generated identifiers are written back into the slice.
func (r *ScheduleRepository) CreateServiceDates(ctx context.Context, exec sqlx.ExtContext, dates []models.ServiceDate) error {
	if exec == nil {
		exec = r.db
	}
	const query = `INSERT INTO service_dates (id, schedule_id, service_date) VALUES ($1, $2, $3)`
	for i := range dates {
		if dates[i].ID == "" {
			dates[i].ID = uuid.NewString()
		}
		if _, err := exec.ExecContext(ctx, query, dates[i].ID, dates[i].ScheduleID, dates[i].Date); err != nil {
			return fmt.Errorf("insert service date: %w", err)
		}
	}
	return nil
}

// ListServiceDates returns a schedule's dates in calendar order.
func (r *ScheduleRepository) ListServiceDates(ctx context.Context, scheduleID string) ([]models.ServiceDate, error) {
	const query = `SELECT id, schedule_id, service_date FROM service_dates WHERE schedule_id = $1 ORDER BY service_date ASC`
	var dates []models.ServiceDate
	if err := r.db.SelectContext(ctx, &dates, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list service dates: %w", err)
	}
	return dates, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parroquia-tools/turnos-api/internal/models"
)

// HistoryRepository provides database access for the append-only
// assignment history written on publish.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new instance of HistoryRepository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = `id, person_id, job_id, service_date, year, week_number, position, created_at`

// BulkCreate appends history rows. Year and ISO week are derived from the
// service date when left zero.
func (r *HistoryRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, entries []models.AssignmentHistory) error {
	if exec == nil {
		exec = r.db
	}
	now := time.Now().UTC()
	const query = `INSERT INTO assignment_history (id, person_id, job_id, service_date, year, week_number, position, created_at)
		VALUES (:id, :person_id, :job_id, :service_date, :year, :week_number, :position, :created_at)`
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].Year == 0 {
			entries[i].Year = entries[i].ServiceDate.Year()
		}
		if entries[i].WeekNumber == 0 {
			_, week := entries[i].ServiceDate.ISOWeek()
			entries[i].WeekNumber = week
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, exec, query, entries[i]); err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
	}
	return nil
}

// ListAll returns the complete history ordered by date. Rotation state is
// derived from the full log, so generation loads everything.
func (r *HistoryRepository) ListAll(ctx context.Context) ([]models.AssignmentHistory, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignment_history ORDER BY service_date ASC, person_id ASC`, historyColumns)
	var entries []models.AssignmentHistory
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// ListByYear returns history rows whose service date falls in the year.
func (r *HistoryRepository) ListByYear(ctx context.Context, year int) ([]models.AssignmentHistory, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignment_history WHERE year = $1 ORDER BY service_date ASC, person_id ASC`, historyColumns)
	var entries []models.AssignmentHistory
	if err := r.db.SelectContext(ctx, &entries, query, year); err != nil {
		return nil, fmt.Errorf("list history by year: %w", err)
	}
	return entries, nil
}

// ListByPerson returns a person's most recent entries, newest first.
// A limit of zero returns everything.
func (r *HistoryRepository) ListByPerson(ctx context.Context, personID string, limit int) ([]models.AssignmentHistory, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignment_history WHERE person_id = $1 ORDER BY service_date DESC`, historyColumns)
	args := []interface{}{personID}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}
	var entries []models.AssignmentHistory
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list history by person: %w", err)
	}
	return entries, nil
}

// DeleteByServiceDates removes history rows for the given dates. Used when
// a published month is archived and republished after edits.
func (r *HistoryRepository) DeleteByServiceDates(ctx context.Context, exec sqlx.ExtContext, dates []time.Time) error {
	if exec == nil {
		exec = r.db
	}
	const query = `DELETE FROM assignment_history WHERE service_date = $1`
	for _, date := range dates {
		if _, err := exec.ExecContext(ctx, query, date); err != nil {
			return fmt.Errorf("delete history for date: %w", err)
		}
	}
	return nil
}

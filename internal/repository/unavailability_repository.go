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

// UnavailabilityRepository provides database access for blocked date
// windows.
type UnavailabilityRepository struct {
	db *sqlx.DB
}

// NewUnavailabilityRepository creates a new instance of UnavailabilityRepository.
func NewUnavailabilityRepository(db *sqlx.DB) *UnavailabilityRepository {
	return &UnavailabilityRepository{db: db}
}

const unavailabilityColumns = `id, person_id, start_date, end_date, reason, recurring, created_at`

// ListByPerson returns a person's windows ordered by start date.
func (r *UnavailabilityRepository) ListByPerson(ctx context.Context, personID string) ([]models.Unavailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM unavailability WHERE person_id = $1 ORDER BY start_date ASC`, unavailabilityColumns)
	var windows []models.Unavailability
	if err := r.db.SelectContext(ctx, &windows, query, personID); err != nil {
		return nil, fmt.Errorf("list unavailability by person: %w", err)
	}
	return windows, nil
}

// ListAll returns every window. Recurring windows apply to any year, so
// generation loads the full set.
func (r *UnavailabilityRepository) ListAll(ctx context.Context) ([]models.Unavailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM unavailability ORDER BY person_id ASC, start_date ASC`, unavailabilityColumns)
	var windows []models.Unavailability
	if err := r.db.SelectContext(ctx, &windows, query); err != nil {
		return nil, fmt.Errorf("list unavailability: %w", err)
	}
	return windows, nil
}

// FindByID returns one window.
func (r *UnavailabilityRepository) FindByID(ctx context.Context, id string) (*models.Unavailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM unavailability WHERE id = $1 LIMIT 1`, unavailabilityColumns)
	var window models.Unavailability
	if err := r.db.GetContext(ctx, &window, query, id); err != nil {
		return nil, err
	}
	return &window, nil
}

// Create inserts a new window.
func (r *UnavailabilityRepository) Create(ctx context.Context, window *models.Unavailability) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	if window.CreatedAt.IsZero() {
		window.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO unavailability (id, person_id, start_date, end_date, reason, recurring, created_at)
		VALUES (:id, :person_id, :start_date, :end_date, :reason, :recurring, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("create unavailability: %w", err)
	}
	return nil
}

// Delete removes a window.
func (r *UnavailabilityRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM unavailability WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete unavailability: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete unavailability rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

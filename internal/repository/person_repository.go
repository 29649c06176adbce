package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/parroquia-tools/turnos-api/internal/models"
)

// PersonRepository provides database access for the volunteer roster.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository creates a new instance of PersonRepository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

const personColumns = `id, first_name, last_name, email, phone, active, preferred_frequency, max_consecutive_weeks, preference_level, exclude_monaguillos, exclude_lectores, notes, created_at, updated_at`

// List returns people matching the filter together with the total count.
// Qualifications are attached for the returned page only.
func (r *PersonRepository) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	baseQuery := `FROM people WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.JobID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM person_jobs pj WHERE pj.person_id = people.id AND pj.job_id = $%d)", len(args)+1))
		args = append(args, filter.JobID)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "last_name"
	}
	allowedSorts := map[string]bool{
		"first_name": true,
		"last_name":  true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "last_name"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", personColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var people []models.Person
	if err := r.db.SelectContext(ctx, &people, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list people: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count people: %w", err)
	}

	if err := r.attachQualifications(ctx, people); err != nil {
		return nil, 0, err
	}

	return people, total, nil
}

// FindByID returns a person with qualifications loaded.
func (r *PersonRepository) FindByID(ctx context.Context, id string) (*models.Person, error) {
	query := fmt.Sprintf(`SELECT %s FROM people WHERE id = $1 LIMIT 1`, personColumns)
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, id); err != nil {
		return nil, err
	}
	people := []models.Person{person}
	if err := r.attachQualifications(ctx, people); err != nil {
		return nil, err
	}
	return &people[0], nil
}

// ListActive returns every active person with qualifications, ordered by id.
// Generation snapshots are built from this.
func (r *PersonRepository) ListActive(ctx context.Context) ([]models.Person, error) {
	query := fmt.Sprintf(`SELECT %s FROM people WHERE active = TRUE ORDER BY id ASC`, personColumns)
	var people []models.Person
	if err := r.db.SelectContext(ctx, &people, query); err != nil {
		return nil, fmt.Errorf("list active people: %w", err)
	}
	if err := r.attachQualifications(ctx, people); err != nil {
		return nil, err
	}
	return people, nil
}

// ListAll returns the whole roster with qualifications, ordered by id.
func (r *PersonRepository) ListAll(ctx context.Context) ([]models.Person, error) {
	query := fmt.Sprintf(`SELECT %s FROM people ORDER BY id ASC`, personColumns)
	var people []models.Person
	if err := r.db.SelectContext(ctx, &people, query); err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	if err := r.attachQualifications(ctx, people); err != nil {
		return nil, err
	}
	return people, nil
}

// Create inserts a new person.
func (r *PersonRepository) Create(ctx context.Context, exec sqlx.ExtContext, person *models.Person) error {
	if exec == nil {
		exec = r.db
	}
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if person.CreatedAt.IsZero() {
		person.CreatedAt = now
	}
	person.UpdatedAt = now

	const query = `INSERT INTO people (id, first_name, last_name, email, phone, active, preferred_frequency, max_consecutive_weeks, preference_level, exclude_monaguillos, exclude_lectores, notes, created_at, updated_at)
		VALUES (:id, :first_name, :last_name, :email, :phone, :active, :preferred_frequency, :max_consecutive_weeks, :preference_level, :exclude_monaguillos, :exclude_lectores, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, person); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// Update updates mutable fields of a person.
func (r *PersonRepository) Update(ctx context.Context, exec sqlx.ExtContext, person *models.Person) error {
	if exec == nil {
		exec = r.db
	}
	person.UpdatedAt = time.Now().UTC()
	const query = `UPDATE people SET first_name = :first_name, last_name = :last_name, email = :email, phone = :phone, active = :active, preferred_frequency = :preferred_frequency, max_consecutive_weeks = :max_consecutive_weeks, preference_level = :preference_level, exclude_monaguillos = :exclude_monaguillos, exclude_lectores = :exclude_lectores, notes = :notes, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, exec, query, person)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update person rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate marks a person inactive without touching history rows.
func (r *PersonRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE people SET active = FALSE, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate person: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate person rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceQualifications rewrites the person_jobs rows for a person.
func (r *PersonRepository) ReplaceQualifications(ctx context.Context, exec sqlx.ExtContext, personID string, jobIDs []string) error {
	if exec == nil {
		exec = r.db
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM person_jobs WHERE person_id = $1`, personID); err != nil {
		return fmt.Errorf("clear person qualifications: %w", err)
	}
	for _, jobID := range jobIDs {
		if _, err := exec.ExecContext(ctx, `INSERT INTO person_jobs (person_id, job_id) VALUES ($1, $2)`, personID, jobID); err != nil {
			return fmt.Errorf("insert person qualification: %w", err)
		}
	}
	return nil
}

func (r *PersonRepository) attachQualifications(ctx context.Context, people []models.Person) error {
	if len(people) == 0 {
		return nil
	}
	ids := make([]string, len(people))
	index := make(map[string]int, len(people))
	for i := range people {
		ids[i] = people[i].ID
		index[people[i].ID] = i
	}

	var links []models.PersonJob
	const query = `SELECT person_id, job_id FROM person_jobs WHERE person_id = ANY($1) ORDER BY person_id, job_id`
	if err := r.db.SelectContext(ctx, &links, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load person qualifications: %w", err)
	}
	for _, link := range links {
		i, ok := index[link.PersonID]
		if !ok {
			continue
		}
		people[i].QualifiedJobIDs = append(people[i].QualifiedJobIDs, link.JobID)
	}
	return nil
}

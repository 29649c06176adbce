package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

type personRepository interface {
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error)
	FindByID(ctx context.Context, id string) (*models.Person, error)
	Create(ctx context.Context, exec sqlx.ExtContext, person *models.Person) error
	Update(ctx context.Context, exec sqlx.ExtContext, person *models.Person) error
	Deactivate(ctx context.Context, id string) error
	ReplaceQualifications(ctx context.Context, exec sqlx.ExtContext, personID string, jobIDs []string) error
}

type personJobReader interface {
	FindByID(ctx context.Context, id string) (*models.Job, error)
}

type personUnavailabilityRepository interface {
	ListByPerson(ctx context.Context, personID string) ([]models.Unavailability, error)
	FindByID(ctx context.Context, id string) (*models.Unavailability, error)
	Create(ctx context.Context, window *models.Unavailability) error
	Delete(ctx context.Context, id string) error
}

// PersonService manages the volunteer roster and per-person availability.
type PersonService struct {
	repo      personRepository
	jobs      personJobReader
	windows   personUnavailabilityRepository
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPersonService constructs the roster service.
func NewPersonService(
	repo personRepository,
	jobs personJobReader,
	windows personUnavailabilityRepository,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
) *PersonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonService{repo: repo, jobs: jobs, windows: windows, tx: tx, validator: validate, logger: logger}
}

// List returns roster members and pagination metadata.
func (s *PersonService) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, *models.Pagination, error) {
	people, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list people")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return people, pagination, nil
}

// Get returns one person with their qualifications.
func (s *PersonService) Get(ctx context.Context, id string) (*models.Person, error) {
	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	return person, nil
}

// Create registers a volunteer together with their job qualifications.
func (s *PersonService) Create(ctx context.Context, req dto.CreatePersonRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid person payload")
	}
	frequency := models.PreferredFrequency(req.PreferredFrequency)
	if !frequency.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "preferredFrequency must be one of weekly, bimonthly, monthly")
	}
	jobIDs := dedupe(req.QualifiedJobIDs)
	if err := s.ensureJobsExist(ctx, jobIDs); err != nil {
		return nil, err
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	person := &models.Person{
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		Email:               req.Email,
		Phone:               req.Phone,
		Active:              true,
		PreferredFrequency:  frequency,
		MaxConsecutiveWeeks: req.MaxConsecutiveWeeks,
		PreferenceLevel:     req.PreferenceLevel,
		ExcludeMonaguillos:  req.ExcludeMonaguillos,
		ExcludeLectores:     req.ExcludeLectores,
		Notes:               req.Notes,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Create(ctx, tx, person); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create person")
		return nil, err
	}
	if err = s.repo.ReplaceQualifications(ctx, tx, person.ID, jobIDs); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store qualifications")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit person transaction")
		return nil, err
	}

	person.QualifiedJobIDs = jobIDs
	s.logger.Info("person created", zap.String("person_id", person.ID))
	return person, nil
}

// Update rewrites the fields present in the request. A non-nil empty
// qualifiedJobIds clears every qualification; nil leaves them untouched.
func (s *PersonService) Update(ctx context.Context, id string, req dto.UpdatePersonRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid person payload")
	}
	person, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		person.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		person.LastName = *req.LastName
	}
	if req.Email != nil {
		person.Email = req.Email
	}
	if req.Phone != nil {
		person.Phone = req.Phone
	}
	if req.Active != nil {
		person.Active = *req.Active
	}
	if req.PreferredFrequency != nil {
		frequency := models.PreferredFrequency(*req.PreferredFrequency)
		if !frequency.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "preferredFrequency must be one of weekly, bimonthly, monthly")
		}
		person.PreferredFrequency = frequency
	}
	if req.MaxConsecutiveWeeks != nil {
		person.MaxConsecutiveWeeks = *req.MaxConsecutiveWeeks
	}
	if req.PreferenceLevel != nil {
		person.PreferenceLevel = *req.PreferenceLevel
	}
	if req.ExcludeMonaguillos != nil {
		person.ExcludeMonaguillos = *req.ExcludeMonaguillos
	}
	if req.ExcludeLectores != nil {
		person.ExcludeLectores = *req.ExcludeLectores
	}
	if req.Notes != nil {
		person.Notes = req.Notes
	}

	var jobIDs []string
	if req.QualifiedJobIDs != nil {
		jobIDs = dedupe(req.QualifiedJobIDs)
		if err := s.ensureJobsExist(ctx, jobIDs); err != nil {
			return nil, err
		}
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Update(ctx, tx, person); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "person not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update person")
		return nil, err
	}
	if req.QualifiedJobIDs != nil {
		if err = s.repo.ReplaceQualifications(ctx, tx, person.ID, jobIDs); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store qualifications")
			return nil, err
		}
		person.QualifiedJobIDs = jobIDs
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit person transaction")
		return nil, err
	}

	s.logger.Info("person updated", zap.String("person_id", person.ID))
	return person, nil
}

// Deactivate retires a volunteer from future generation runs. Their past
// assignments and history rows stay.
func (s *PersonService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate person")
	}
	s.logger.Info("person deactivated", zap.String("person_id", id))
	return nil
}

// ListUnavailability returns a person's blocked windows.
func (s *PersonService) ListUnavailability(ctx context.Context, personID string) ([]models.Unavailability, error) {
	if _, err := s.Get(ctx, personID); err != nil {
		return nil, err
	}
	windows, err := s.windows.ListByPerson(ctx, personID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unavailability")
	}
	return windows, nil
}

// AddUnavailability blocks a date window for a person. Recurring windows
// repeat every year on the same month and day.
func (s *PersonService) AddUnavailability(ctx context.Context, personID string, req dto.AddUnavailabilityRequest) (*models.Unavailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unavailability payload")
	}
	if _, err := s.Get(ctx, personID); err != nil {
		return nil, err
	}
	start, err := parseDate(req.StartDate, "startDate")
	if err != nil {
		return nil, err
	}
	end, err := parseDate(req.EndDate, "endDate")
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not precede startDate")
	}

	window := &models.Unavailability{
		PersonID:  personID,
		StartDate: start,
		EndDate:   end,
		Reason:    req.Reason,
		Recurring: req.Recurring,
	}
	if err := s.windows.Create(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create unavailability")
	}
	s.logger.Info("unavailability added",
		zap.String("person_id", personID),
		zap.String("window_id", window.ID),
		zap.Bool("recurring", window.Recurring))
	return window, nil
}

// RemoveUnavailability deletes one window belonging to the person.
func (s *PersonService) RemoveUnavailability(ctx context.Context, personID, windowID string) error {
	window, err := s.windows.FindByID(ctx, windowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "unavailability window not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unavailability")
	}
	if window.PersonID != personID {
		return appErrors.Clone(appErrors.ErrNotFound, "unavailability window not found")
	}
	if err := s.windows.Delete(ctx, windowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "unavailability window not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete unavailability")
	}
	s.logger.Info("unavailability removed",
		zap.String("person_id", personID),
		zap.String("window_id", windowID))
	return nil
}

func (s *PersonService) ensureJobsExist(ctx context.Context, jobIDs []string) error {
	for _, jobID := range jobIDs {
		if _, err := s.jobs.FindByID(ctx, jobID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("job %s not found", jobID))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job")
		}
	}
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// parseDate reads the YYYY-MM-DD format request payloads use.
func parseDate(value, field string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be formatted YYYY-MM-DD", field))
	}
	return t.UTC(), nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

type jobRepository interface {
	List(ctx context.Context, active *bool) ([]models.Job, error)
	FindByID(ctx context.Context, id string) (*models.Job, error)
	FindByName(ctx context.Context, name string) (*models.Job, error)
	Create(ctx context.Context, exec sqlx.ExtContext, job *models.Job) error
	Update(ctx context.Context, exec sqlx.ExtContext, job *models.Job) error
	Deactivate(ctx context.Context, id string) error
	ReplacePositions(ctx context.Context, exec sqlx.ExtContext, jobID string, names []string) error
}

// JobService manages role categories and their numbered positions. A job
// always has exactly peopleRequired positions; the service resizes the
// position list whenever the requirement changes.
type JobService struct {
	repo      jobRepository
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewJobService constructs the job service.
func NewJobService(repo jobRepository, tx txProvider, validate *validator.Validate, logger *zap.Logger) *JobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{repo: repo, tx: tx, validator: validate, logger: logger}
}

// List returns jobs with their positions, optionally filtered by active.
func (s *JobService) List(ctx context.Context, active *bool) ([]models.Job, error) {
	jobs, err := s.repo.List(ctx, active)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list jobs")
	}
	return jobs, nil
}

// Get returns one job with its positions.
func (s *JobService) Get(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job")
	}
	return job, nil
}

// Create registers a job with peopleRequired positions. Explicit position
// names must cover every position; omitted names default to "<name> <n>".
func (s *JobService) Create(ctx context.Context, req dto.CreateJobRequest) (*models.Job, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job payload")
	}
	if len(req.PositionNames) > 0 && len(req.PositionNames) != req.PeopleRequired {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("positionNames must have %d entries to match peopleRequired", req.PeopleRequired))
	}
	if err := s.ensureNameFree(ctx, req.Name, ""); err != nil {
		return nil, err
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	job := &models.Job{
		Name:           req.Name,
		Description:    req.Description,
		PeopleRequired: req.PeopleRequired,
		Color:          req.Color,
		Active:         true,
	}
	names := positionNames(job.Name, req.PeopleRequired, req.PositionNames)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Create(ctx, tx, job); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create job")
		return nil, err
	}
	if err = s.repo.ReplacePositions(ctx, tx, job.ID, names); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store positions")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit job transaction")
		return nil, err
	}

	job.Positions = positionModels(job.ID, names)
	s.logger.Info("job created", zap.String("job_id", job.ID), zap.String("name", job.Name))
	return job, nil
}

// Update rewrites the fields present in the request. When peopleRequired
// changes without explicit positionNames, the position list is resized
// keeping the names that still fit. Published schedules are untouched;
// the new size applies to later generation runs.
func (s *JobService) Update(ctx context.Context, id string, req dto.UpdateJobRequest) (*models.Job, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job payload")
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && !strings.EqualFold(*req.Name, job.Name) {
		if err := s.ensureNameFree(ctx, *req.Name, job.ID); err != nil {
			return nil, err
		}
		job.Name = *req.Name
	}
	if req.Description != nil {
		job.Description = req.Description
	}
	if req.PeopleRequired != nil {
		job.PeopleRequired = *req.PeopleRequired
	}
	if req.Color != nil {
		job.Color = req.Color
	}
	if req.Active != nil {
		job.Active = *req.Active
	}
	if len(req.PositionNames) > 0 && len(req.PositionNames) != job.PeopleRequired {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("positionNames must have %d entries to match peopleRequired", job.PeopleRequired))
	}

	existing := make([]string, 0, len(job.Positions))
	for _, p := range job.Positions {
		existing = append(existing, p.Name)
	}
	names := req.PositionNames
	if len(names) == 0 {
		names = resizePositions(job.Name, existing, job.PeopleRequired)
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

	if err = s.repo.Update(ctx, tx, job); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "job not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update job")
		return nil, err
	}
	if err = s.repo.ReplacePositions(ctx, tx, job.ID, names); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store positions")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit job transaction")
		return nil, err
	}

	job.Positions = positionModels(job.ID, names)
	s.logger.Info("job updated", zap.String("job_id", job.ID))
	return job, nil
}

// Deactivate retires a job from future generation runs. Assignments and
// history referencing it stay readable.
func (s *JobService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate job")
	}
	s.logger.Info("job deactivated", zap.String("job_id", id))
	return nil
}

func (s *JobService) ensureNameFree(ctx context.Context, name, excludeID string) error {
	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check job name")
	}
	if existing.ID != excludeID {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("a job named %q already exists", name))
	}
	return nil
}

// positionNames fills the 1..n name list, defaulting to "<job name> <n>".
func positionNames(jobName string, count int, explicit []string) []string {
	if len(explicit) == count {
		return explicit
	}
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("%s %d", jobName, i+1)
	}
	return names
}

// resizePositions grows or shrinks the stored names to the new count,
// keeping the overlap and defaulting added entries.
func resizePositions(jobName string, existing []string, count int) []string {
	names := make([]string, count)
	for i := range names {
		if i < len(existing) {
			names[i] = existing[i]
			continue
		}
		names[i] = fmt.Sprintf("%s %d", jobName, i+1)
	}
	return names
}

func positionModels(jobID string, names []string) []models.JobPosition {
	out := make([]models.JobPosition, 0, len(names))
	for i, name := range names {
		out = append(out, models.JobPosition{JobID: jobID, PositionNumber: i + 1, Name: name})
	}
	return out
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

type jobRepoStub struct {
	jobs        map[string]*models.Job
	seq         int
	deactivated []string
	positions   map[string][]string
}

func newJobRepoStub(jobs ...*models.Job) *jobRepoStub {
	s := &jobRepoStub{
		jobs:      make(map[string]*models.Job),
		positions: make(map[string][]string),
	}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *jobRepoStub) List(ctx context.Context, active *bool) ([]models.Job, error) {
	out := make([]models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if active != nil && j.Active != *active {
			continue
		}
		out = append(out, *j)
	}
	return out, nil
}

func (s *jobRepoStub) FindByID(ctx context.Context, id string) (*models.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *j
	return &copied, nil
}

func (s *jobRepoStub) FindByName(ctx context.Context, name string) (*models.Job, error) {
	for _, j := range s.jobs {
		if strings.EqualFold(j.Name, name) {
			copied := *j
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *jobRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, job *models.Job) error {
	s.seq++
	job.ID = fmt.Sprintf("j%d", s.seq)
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *jobRepoStub) Update(ctx context.Context, exec sqlx.ExtContext, job *models.Job) error {
	if _, ok := s.jobs[job.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *jobRepoStub) Deactivate(ctx context.Context, id string) error {
	j, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	j.Active = false
	s.deactivated = append(s.deactivated, id)
	return nil
}

func (s *jobRepoStub) ReplacePositions(ctx context.Context, exec sqlx.ExtContext, jobID string, names []string) error {
	s.positions[jobID] = names
	return nil
}

func TestJobServiceCreateDefaultsPositionNames(t *testing.T) {
	repo := newJobRepoStub()
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := NewJobService(repo, tx, nil, nil)

	job, err := svc.Create(context.Background(), dto.CreateJobRequest{Name: "Coro", PeopleRequired: 3})
	require.NoError(t, err)
	assert.True(t, job.Active)
	require.Len(t, job.Positions, 3)
	assert.Equal(t, "Coro 1", job.Positions[0].Name)
	assert.Equal(t, 3, job.Positions[2].PositionNumber)
	assert.Equal(t, []string{"Coro 1", "Coro 2", "Coro 3"}, repo.positions[job.ID])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobServiceCreateExplicitPositionNames(t *testing.T) {
	repo := newJobRepoStub()
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := NewJobService(repo, tx, nil, nil)

	job, err := svc.Create(context.Background(), dto.CreateJobRequest{
		Name:           "Monaguillos",
		PeopleRequired: 2,
		PositionNames:  []string{"Cruz", "Ciriales"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cruz", "Ciriales"}, repo.positions[job.ID])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobServiceCreateRejectsPositionCountMismatch(t *testing.T) {
	svc := NewJobService(newJobRepoStub(), noopTxProvider{}, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateJobRequest{
		Name:           "Monaguillos",
		PeopleRequired: 3,
		PositionNames:  []string{"Cruz", "Ciriales"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestJobServiceCreateRejectsDuplicateName(t *testing.T) {
	existing := &models.Job{ID: "j1", Name: "Lectores", PeopleRequired: 1, Active: true}
	svc := NewJobService(newJobRepoStub(existing), noopTxProvider{}, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateJobRequest{Name: "lectores", PeopleRequired: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestJobServiceUpdateGrowsPositions(t *testing.T) {
	existing := &models.Job{
		ID:             "j1",
		Name:           "Monaguillos",
		PeopleRequired: 2,
		Active:         true,
		Positions: []models.JobPosition{
			{JobID: "j1", PositionNumber: 1, Name: "Cruz"},
			{JobID: "j1", PositionNumber: 2, Name: "Ciriales"},
		},
	}
	repo := newJobRepoStub(existing)
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := NewJobService(repo, tx, nil, nil)

	needed := 4
	job, err := svc.Update(context.Background(), "j1", dto.UpdateJobRequest{PeopleRequired: &needed})
	require.NoError(t, err)
	require.Len(t, job.Positions, 4)

	// Stored names survive; the added slots get defaults.
	assert.Equal(t, []string{"Cruz", "Ciriales", "Monaguillos 3", "Monaguillos 4"}, repo.positions["j1"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobServiceUpdateShrinksPositions(t *testing.T) {
	existing := &models.Job{
		ID:             "j1",
		Name:           "Monaguillos",
		PeopleRequired: 3,
		Active:         true,
		Positions: []models.JobPosition{
			{JobID: "j1", PositionNumber: 1, Name: "Cruz"},
			{JobID: "j1", PositionNumber: 2, Name: "Ciriales"},
			{JobID: "j1", PositionNumber: 3, Name: "Incensario"},
		},
	}
	repo := newJobRepoStub(existing)
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	svc := NewJobService(repo, tx, nil, nil)

	needed := 1
	_, err := svc.Update(context.Background(), "j1", dto.UpdateJobRequest{PeopleRequired: &needed})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cruz"}, repo.positions["j1"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobServiceUpdateRenameConflict(t *testing.T) {
	repo := newJobRepoStub(
		&models.Job{ID: "j1", Name: "Monaguillos", PeopleRequired: 2, Active: true},
		&models.Job{ID: "j2", Name: "Lectores", PeopleRequired: 1, Active: true},
	)
	svc := NewJobService(repo, noopTxProvider{}, nil, nil)

	name := "Lectores"
	_, err := svc.Update(context.Background(), "j1", dto.UpdateJobRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestJobServiceDeactivate(t *testing.T) {
	repo := newJobRepoStub(&models.Job{ID: "j1", Name: "Monaguillos", PeopleRequired: 2, Active: true})
	svc := NewJobService(repo, noopTxProvider{}, nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "j1"))
	assert.False(t, repo.jobs["j1"].Active)
}

func TestJobServiceGetUnknown(t *testing.T) {
	svc := NewJobService(newJobRepoStub(), noopTxProvider{}, nil, nil)

	_, err := svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

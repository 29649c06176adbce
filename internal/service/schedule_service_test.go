package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	"github.com/parroquia-tools/turnos-api/pkg/config"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

// February 2026 has exactly four Sundays: the 1st, 8th, 15th and 22nd.
const (
	fixtureYear  = 2026
	fixtureMonth = 2
)

func TestScheduleServiceGenerateFillsAllSlots(t *testing.T) {
	fx := newScheduleFixture(t, scheduleFixtureConfig{})

	resp, err := fx.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		Year:  fixtureYear,
		Month: fixtureMonth,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ProposalID)
	assert.Equal(t, "Febrero 2026", resp.Name)
	assert.Len(t, resp.Dates, 4)
	assert.Len(t, resp.Slots, 12, "2 monaguillos + 1 lector on each of 4 Sundays")
	assert.Empty(t, resp.Conflicts)
	for _, slot := range resp.Slots {
		assert.NotNil(t, slot.PersonID, "slot %s/%s should be filled", slot.ServiceDate, slot.JobName)
	}
	assert.NotEmpty(t, resp.FairnessScores)
}

func TestScheduleServiceGenerateRejectsExistingMonth(t *testing.T) {
	fx := newScheduleFixture(t, scheduleFixtureConfig{
		existing: []models.Schedule{{ID: "sched-1", Year: fixtureYear, Month: fixtureMonth, Status: models.ScheduleDraft}},
	})

	_, err := fx.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		Year:  fixtureYear,
		Month: fixtureMonth,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestScheduleServiceGenerateReportsUnfillableSlots(t *testing.T) {
	fx := newScheduleFixture(t, scheduleFixtureConfig{people: fixtureRoster(2)})

	resp, err := fx.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		Year:  fixtureYear,
		Month: fixtureMonth,
	})
	require.NoError(t, err, "a thin roster degrades to conflicts, not an error")
	assert.NotEmpty(t, resp.Conflicts)
	for _, c := range resp.Conflicts {
		assert.NotEmpty(t, c.Code)
		assert.NotEmpty(t, c.Message)
	}
}

func TestScheduleServiceSavePersistsDraft(t *testing.T) {
	txp, mock := newTxProviderMock(t)
	fx := newScheduleFixture(t, scheduleFixtureConfig{tx: txp})

	resp, err := fx.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		Year:  fixtureYear,
		Month: fixtureMonth,
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("schedule:2026-02").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	detail, err := fx.service.Save(context.Background(), dto.SaveScheduleRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)
	assert.Equal(t, string(models.ScheduleDraft), detail.Status)
	assert.Len(t, detail.Slots, 12)
	assert.True(t, detail.Completeness.IsComplete)
	assert.Len(t, fx.schedules.items, 1)
	assert.Len(t, fx.schedules.dates[detail.ID], 4)
	assert.Len(t, fx.assignments.created, 12)
	assert.Contains(t, fx.cache.patterns, "reports:*")
	assert.NoError(t, mock.ExpectationsWereMet())

	// The proposal is consumed by the save.
	_, err = fx.service.Save(context.Background(), dto.SaveScheduleRequest{ProposalID: resp.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceSaveUnknownProposal(t *testing.T) {
	txp, _ := newTxProviderMock(t)
	fx := newScheduleFixture(t, scheduleFixtureConfig{tx: txp})

	_, err := fx.service.Save(context.Background(), dto.SaveScheduleRequest{ProposalID: "missing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleServicePublishRejectsEmptySlots(t *testing.T) {
	fx := newScheduleFixture(t, scheduleFixtureConfig{
		existing: []models.Schedule{draftSchedule("sched-1")},
	})
	fx.assignments.details = fixtureDetails("sched-1", false)

	_, err := fx.service.Publish(context.Background(), "sched-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErr.Code)
	assert.NotNil(t, appErr.Details, "empty slots should be listed in details")
}

func TestScheduleServicePublishAppendsHistory(t *testing.T) {
	txp, mock := newTxProviderMock(t)
	fx := newScheduleFixture(t, scheduleFixtureConfig{
		tx:       txp,
		existing: []models.Schedule{draftSchedule("sched-1")},
	})
	fx.assignments.details = fixtureDetails("sched-1", true)
	fx.schedules.dates["sched-1"] = fixtureServiceDates("sched-1")

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("schedule:2026-02").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	detail, err := fx.service.Publish(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.Equal(t, string(models.SchedulePublished), detail.Status)
	assert.Len(t, fx.history.entries, len(fx.assignments.details))
	assert.Contains(t, fx.cache.patterns, "reports:*")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleServicePublishTwice(t *testing.T) {
	fx := newScheduleFixture(t, scheduleFixtureConfig{
		existing: []models.Schedule{publishedSchedule("sched-1")},
	})

	_, err := fx.service.Publish(context.Background(), "sched-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceUnpublishRemovesHistory(t *testing.T) {
	txp, mock := newTxProviderMock(t)
	fx := newScheduleFixture(t, scheduleFixtureConfig{
		tx:       txp,
		existing: []models.Schedule{publishedSchedule("sched-1")},
	})
	fx.assignments.details = fixtureDetails("sched-1", true)
	fx.schedules.dates["sched-1"] = fixtureServiceDates("sched-1")

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("schedule:2026-02").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	detail, err := fx.service.Unpublish(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.Equal(t, string(models.ScheduleDraft), detail.Status)
	assert.Len(t, fx.history.deletedDates, len(fx.schedules.dates["sched-1"]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleServiceUnpublishRequiresPublished(t *testing.T) {
	fx := newScheduleFixture(t, scheduleFixtureConfig{
		existing: []models.Schedule{draftSchedule("sched-1")},
	})

	_, err := fx.service.Unpublish(context.Background(), "sched-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceArchiveOnlyPublished(t *testing.T) {
	fx := newScheduleFixture(t, scheduleFixtureConfig{
		existing: []models.Schedule{draftSchedule("sched-1"), publishedSchedule("sched-2")},
	})
	fx.schedules.items["sched-2"].Year = fixtureYear
	fx.schedules.items["sched-2"].Month = 3

	_, err := fx.service.Archive(context.Background(), "sched-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)

	detail, err := fx.service.Archive(context.Background(), "sched-2")
	require.NoError(t, err)
	assert.Equal(t, string(models.ScheduleArchived), detail.Status)
}

func TestScheduleServiceDeleteDraftOnly(t *testing.T) {
	fx := newScheduleFixture(t, scheduleFixtureConfig{
		existing: []models.Schedule{publishedSchedule("sched-1")},
	})

	err := fx.service.Delete(context.Background(), "sched-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)

	fx.schedules.items["sched-1"].Status = models.ScheduleDraft
	require.NoError(t, fx.service.Delete(context.Background(), "sched-1"))
	assert.Empty(t, fx.schedules.items)
}

func TestScheduleServiceListRejectsUnknownStatus(t *testing.T) {
	fx := newScheduleFixture(t, scheduleFixtureConfig{})

	_, err := fx.service.List(context.Background(), dto.ScheduleQuery{Status: "PENDING"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProposalStoreExpiry(t *testing.T) {
	store := newProposalStore(10 * time.Millisecond)
	store.Save(scheduleProposal{ProposalID: "p-1", RequestedAt: time.Now().UTC().Add(-time.Minute)})

	_, ok := store.Get("p-1")
	assert.False(t, ok, "stale proposals should not be returned")

	store.Save(scheduleProposal{ProposalID: "p-2", RequestedAt: time.Now().UTC()})
	_, ok = store.Get("p-2")
	assert.True(t, ok)
}

// --- Fixtures ---

type scheduleFixtureConfig struct {
	tx       txProvider
	existing []models.Schedule
	people   []models.Person
}

type scheduleFixture struct {
	service     *ScheduleService
	schedules   *scheduleRepoStub
	assignments *assignmentStoreStub
	history     *historyStoreStub
	cache       *cacheSpy
}

func newScheduleFixture(t *testing.T, cfg scheduleFixtureConfig) *scheduleFixture {
	t.Helper()

	people := cfg.people
	if people == nil {
		people = fixtureRoster(10)
	}
	schedules := newScheduleRepoStub(cfg.existing)
	assignments := &assignmentStoreStub{}
	history := &historyStoreStub{}
	cache := &cacheSpy{}
	tx := cfg.tx
	if tx == nil {
		tx = noopTxProvider{}
	}

	service := NewScheduleService(
		schedules,
		assignments,
		history,
		rosterStub{items: people},
		jobListStub{items: fixtureJobs()},
		windowListStub{},
		siblingListStub{},
		cache,
		tx,
		validator.New(),
		zap.NewNop(),
		config.SchedulerConfig{ProposalTTL: time.Hour},
	)
	return &scheduleFixture{
		service:     service,
		schedules:   schedules,
		assignments: assignments,
		history:     history,
		cache:       cache,
	}
}

func fixtureRoster(size int) []models.Person {
	people := make([]models.Person, 0, size)
	for i := 0; i < size; i++ {
		people = append(people, models.Person{
			ID:                  fmt.Sprintf("p-%02d", i+1),
			FirstName:           fmt.Sprintf("Niño%d", i+1),
			LastName:            "García",
			Active:              true,
			PreferredFrequency:  models.FrequencyWeekly,
			MaxConsecutiveWeeks: 2,
			PreferenceLevel:     5,
			QualifiedJobIDs:     []string{"job-mon", "job-lec"},
		})
	}
	return people
}

func fixtureJobs() []models.Job {
	return []models.Job{
		{
			ID:             "job-mon",
			Name:           "Monaguillos",
			PeopleRequired: 2,
			Active:         true,
			Positions: []models.JobPosition{
				{JobID: "job-mon", PositionNumber: 1, Name: "Monaguillo 1"},
				{JobID: "job-mon", PositionNumber: 2, Name: "Monaguillo 2"},
			},
		},
		{
			ID:             "job-lec",
			Name:           "Lectores",
			PeopleRequired: 1,
			Active:         true,
			Positions: []models.JobPosition{
				{JobID: "job-lec", PositionNumber: 1, Name: "Lector"},
			},
		},
	}
}

func draftSchedule(id string) models.Schedule {
	return models.Schedule{ID: id, Year: fixtureYear, Month: fixtureMonth, Name: "Febrero 2026", Status: models.ScheduleDraft}
}

func publishedSchedule(id string) models.Schedule {
	s := draftSchedule(id)
	s.Status = models.SchedulePublished
	return s
}

func fixtureServiceDates(scheduleID string) []models.ServiceDate {
	return []models.ServiceDate{
		{ID: "sd-1", ScheduleID: scheduleID, Date: time.Date(fixtureYear, fixtureMonth, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "sd-2", ScheduleID: scheduleID, Date: time.Date(fixtureYear, fixtureMonth, 8, 0, 0, 0, 0, time.UTC)},
	}
}

// fixtureDetails returns stored slots for one Sunday; filled controls
// whether the lector slot has a person.
func fixtureDetails(scheduleID string, filled bool) []models.AssignmentDetail {
	date := time.Date(fixtureYear, fixtureMonth, 1, 0, 0, 0, 0, time.UTC)
	p1, p2, p3 := "p-01", "p-02", "p-03"
	n1, n2, n3 := "Niño1 García", "Niño2 García", "Niño3 García"
	pos1, pos2, lec := "Monaguillo 1", "Monaguillo 2", "Lector"

	details := []models.AssignmentDetail{
		{
			Assignment:  models.Assignment{ID: "a-1", ServiceDateID: "sd-1", JobID: "job-mon", Position: 1, PersonID: &p1, PositionName: &pos1},
			ScheduleID:  scheduleID,
			ServiceDate: date,
			JobName:     "Monaguillos",
			PersonName:  &n1,
		},
		{
			Assignment:  models.Assignment{ID: "a-2", ServiceDateID: "sd-1", JobID: "job-mon", Position: 2, PersonID: &p2, PositionName: &pos2},
			ScheduleID:  scheduleID,
			ServiceDate: date,
			JobName:     "Monaguillos",
			PersonName:  &n2,
		},
		{
			Assignment:  models.Assignment{ID: "a-3", ServiceDateID: "sd-1", JobID: "job-lec", Position: 1, PositionName: &lec},
			ScheduleID:  scheduleID,
			ServiceDate: date,
			JobName:     "Lectores",
		},
	}
	if filled {
		details[2].PersonID = &p3
		details[2].PersonName = &n3
	}
	return details
}

type scheduleRepoStub struct {
	mu    sync.Mutex
	items map[string]*models.Schedule
	dates map[string][]models.ServiceDate
	seq   int
}

func newScheduleRepoStub(existing []models.Schedule) *scheduleRepoStub {
	stub := &scheduleRepoStub{
		items: make(map[string]*models.Schedule),
		dates: make(map[string][]models.ServiceDate),
	}
	for i := range existing {
		item := existing[i]
		stub.items[item.ID] = &item
	}
	return stub
}

func (s *scheduleRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	schedule.ID = fmt.Sprintf("sched-%d", s.seq)
	item := *schedule
	s.items[schedule.ID] = &item
	return nil
}

func (s *scheduleRepoStub) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		copied := *item
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *scheduleRepoStub) FindByYearMonth(ctx context.Context, year, month int) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Year == year && item.Month == month {
			copied := *item
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *scheduleRepoStub) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Schedule
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *scheduleRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ScheduleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Status = status
	return nil
}

func (s *scheduleRepoStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

func (s *scheduleRepoStub) CreateServiceDates(ctx context.Context, exec sqlx.ExtContext, dates []models.ServiceDate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range dates {
		dates[i].ID = fmt.Sprintf("sd-%d", i+1)
		s.dates[dates[i].ScheduleID] = append(s.dates[dates[i].ScheduleID], dates[i])
	}
	return nil
}

func (s *scheduleRepoStub) ListServiceDates(ctx context.Context, scheduleID string) ([]models.ServiceDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dates[scheduleID], nil
}

type assignmentStoreStub struct {
	mu      sync.Mutex
	created []models.Assignment
	details []models.AssignmentDetail
	updates []assignmentUpdate
}

type assignmentUpdate struct {
	id       string
	personID *string
	override bool
}

func (s *assignmentStoreStub) BulkCreate(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range assignments {
		assignments[i].ID = fmt.Sprintf("a-%d", len(s.created)+i+1)
	}
	s.created = append(s.created, assignments...)
	return nil
}

func (s *assignmentStoreStub) ListBySchedule(ctx context.Context, scheduleID string) ([]models.AssignmentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.details, nil
}

func (s *assignmentStoreStub) ListByPerson(ctx context.Context, personID string, from time.Time) ([]models.AssignmentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AssignmentDetail
	for i := range s.details {
		d := s.details[i]
		if d.PersonID != nil && *d.PersonID == personID && !d.ServiceDate.Before(from) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *assignmentStoreStub) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.details {
		if s.details[i].ID == id {
			copied := s.details[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *assignmentStoreStub) UpdatePerson(ctx context.Context, exec sqlx.ExtContext, id string, personID *string, manualOverride bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.details {
		if s.details[i].ID == id {
			s.details[i].PersonID = personID
			s.details[i].ManualOverride = manualOverride
			s.updates = append(s.updates, assignmentUpdate{id: id, personID: personID, override: manualOverride})
			return nil
		}
	}
	return sql.ErrNoRows
}

type historyStoreStub struct {
	mu           sync.Mutex
	entries      []models.AssignmentHistory
	deletedDates []time.Time
}

func (s *historyStoreStub) ListAll(ctx context.Context) ([]models.AssignmentHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries, nil
}

func (s *historyStoreStub) ListByPerson(ctx context.Context, personID string, limit int) ([]models.AssignmentHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AssignmentHistory
	for _, e := range s.entries {
		if e.PersonID == personID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *historyStoreStub) BulkCreate(ctx context.Context, exec sqlx.ExtContext, entries []models.AssignmentHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *historyStoreStub) DeleteByServiceDates(ctx context.Context, exec sqlx.ExtContext, dates []time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedDates = append(s.deletedDates, dates...)
	return nil
}

type rosterStub struct{ items []models.Person }

func (s rosterStub) ListAll(ctx context.Context) ([]models.Person, error) { return s.items, nil }

func (s rosterStub) FindByID(ctx context.Context, id string) (*models.Person, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			copied := s.items[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

type jobListStub struct{ items []models.Job }

func (s jobListStub) List(ctx context.Context, active *bool) ([]models.Job, error) {
	return s.items, nil
}

func (s jobListStub) FindByID(ctx context.Context, id string) (*models.Job, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			copied := s.items[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

type windowListStub struct{ items []models.Unavailability }

func (s windowListStub) ListAll(ctx context.Context) ([]models.Unavailability, error) {
	return s.items, nil
}

type siblingListStub struct{ items []models.SiblingGroup }

func (s siblingListStub) List(ctx context.Context) ([]models.SiblingGroup, error) {
	return s.items, nil
}

type cacheSpy struct {
	mu       sync.Mutex
	patterns []string
}

func (s *cacheSpy) DeleteByPattern(ctx context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, pattern)
	return nil
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	"github.com/parroquia-tools/turnos-api/internal/scheduler"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

type reportHistoryReader interface {
	ListAll(ctx context.Context) ([]models.AssignmentHistory, error)
	ListByPerson(ctx context.Context, personID string, limit int) ([]models.AssignmentHistory, error)
}

type reportPersonReader interface {
	ListAll(ctx context.Context) ([]models.Person, error)
	FindByID(ctx context.Context, id string) (*models.Person, error)
}

type reportScheduleReader interface {
	FindByYearMonth(ctx context.Context, year, month int) (*models.Schedule, error)
	ListServiceDates(ctx context.Context, scheduleID string) ([]models.ServiceDate, error)
}

type reportAssignmentReader interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.AssignmentDetail, error)
}

// ReportService answers the read-side questions coordinators ask: who is
// carrying the load, what one person has served, how a month is covered.
// Fairness and month summaries are cached; publish and edit flows
// invalidate them.
type ReportService struct {
	history     reportHistoryReader
	people      reportPersonReader
	jobs        snapshotJobsReader
	schedules   reportScheduleReader
	assignments reportAssignmentReader
	cache       *CacheService
	logger      *zap.Logger
	cfg         ReportServiceConfig
}

// ReportServiceConfig governs report cache lifetimes.
type ReportServiceConfig struct {
	FairnessTTL time.Duration
	SummaryTTL  time.Duration
}

// NewReportService constructs the report service.
func NewReportService(
	history reportHistoryReader,
	people reportPersonReader,
	jobs snapshotJobsReader,
	schedules reportScheduleReader,
	assignments reportAssignmentReader,
	cache *CacheService,
	logger *zap.Logger,
	cfg ReportServiceConfig,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FairnessTTL <= 0 {
		cfg.FairnessTTL = 10 * time.Minute
	}
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 10 * time.Minute
	}
	return &ReportService{
		history:     history,
		people:      people,
		jobs:        jobs,
		schedules:   schedules,
		assignments: assignments,
		cache:       cache,
		logger:      logger,
		cfg:         cfg,
	}
}

// Fairness ranks the active roster by this year's load, least served
// first. A zero year defaults to the current year. The bool reports
// whether the response came from cache.
func (s *ReportService) Fairness(ctx context.Context, year int) (*dto.FairnessReportResponse, bool, error) {
	if year <= 0 {
		year = time.Now().UTC().Year()
	}
	cacheKey := fmt.Sprintf("reports:fairness:%d", year)
	var cached dto.FairnessReportResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	people, err := s.people.ListAll(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	entries, err := s.history.ListAll(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment history")
	}

	active := make([]scheduler.Person, 0, len(people))
	for i := range people {
		if !people[i].Active {
			continue
		}
		active = append(active, scheduler.Person{
			ID:        people[i].ID,
			FirstName: people[i].FirstName,
			LastName:  people[i].LastName,
			Active:    true,
		})
	}
	scores := scheduler.Fairness(active, mapHistory(entries), year)

	resp := &dto.FairnessReportResponse{Year: year, Scores: fairnessViews(scores)}
	_ = s.cache.Set(ctx, cacheKey, resp, s.cfg.FairnessTTL)
	return resp, false, nil
}

// PersonHistory lists a person's recent services, newest first. A zero
// limit defaults to 20; limits are capped at 100.
func (s *ReportService) PersonHistory(ctx context.Context, personID string, limit int) (*dto.PersonHistoryResponse, error) {
	person, err := s.people.FindByID(ctx, personID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	entries, err := s.history.ListByPerson(ctx, personID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment history")
	}
	jobNames, err := s.jobNames(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]dto.PersonHistoryEntryView, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		views = append(views, dto.PersonHistoryEntryView{
			ServiceDate: scheduler.DateKey(e.ServiceDate),
			JobID:       e.JobID,
			JobName:     jobNames[e.JobID],
			Position:    e.Position,
		})
	}
	return &dto.PersonHistoryResponse{
		PersonID:   person.ID,
		PersonName: person.FullName(),
		Entries:    views,
	}, nil
}

// MonthSummary aggregates one stored schedule: per-job coverage, manual
// override count and how many distinct people serve. The bool reports
// whether the response came from cache.
func (s *ReportService) MonthSummary(ctx context.Context, year, month int) (*dto.MonthSummaryResponse, bool, error) {
	if month < 1 || month > 12 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	cacheKey := fmt.Sprintf("reports:summary:%d-%02d", year, month)
	var cached dto.MonthSummaryResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, true, nil
	}

	schedule, err := s.schedules.FindByYearMonth(ctx, year, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "no schedule exists for this month")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	serviceDates, err := s.schedules.ListServiceDates(ctx, schedule.ID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list service dates")
	}
	details, err := s.assignments.ListBySchedule(ctx, schedule.ID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	coverage := make(map[string]*dto.JobCoverageView)
	peopleSeen := make(map[string]bool)
	overrides := 0
	for i := range details {
		d := &details[i]
		view, ok := coverage[d.JobID]
		if !ok {
			view = &dto.JobCoverageView{JobID: d.JobID, JobName: d.JobName}
			coverage[d.JobID] = view
		}
		view.TotalSlots++
		if d.PersonID != nil {
			view.FilledSlots++
			peopleSeen[*d.PersonID] = true
		}
		if d.ManualOverride {
			overrides++
		}
	}
	jobViews := make([]dto.JobCoverageView, 0, len(coverage))
	for _, view := range coverage {
		jobViews = append(jobViews, *view)
	}
	sort.Slice(jobViews, func(i, j int) bool { return jobViews[i].JobName < jobViews[j].JobName })

	dates := make([]string, 0, len(serviceDates))
	for i := range serviceDates {
		dates = append(dates, scheduler.DateKey(serviceDates[i].Date))
	}

	resp := &dto.MonthSummaryResponse{
		Year:            schedule.Year,
		Month:           schedule.Month,
		Status:          string(schedule.Status),
		Dates:           dates,
		Coverage:        jobViews,
		ManualOverrides: overrides,
		DistinctPeople:  len(peopleSeen),
	}
	_ = s.cache.Set(ctx, cacheKey, resp, s.cfg.SummaryTTL)
	return resp, false, nil
}

func (s *ReportService) jobNames(ctx context.Context) (map[string]string, error) {
	jobs, err := s.jobs.List(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load jobs")
	}
	names := make(map[string]string, len(jobs))
	for i := range jobs {
		names[jobs[i].ID] = jobs[i].Name
	}
	return names, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	"github.com/parroquia-tools/turnos-api/internal/scheduler"
	"github.com/parroquia-tools/turnos-api/pkg/config"
	"github.com/parroquia-tools/turnos-api/pkg/database"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

type scheduleRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	FindByYearMonth(ctx context.Context, year, month int) (*models.Schedule, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ScheduleStatus) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	CreateServiceDates(ctx context.Context, exec sqlx.ExtContext, dates []models.ServiceDate) error
	ListServiceDates(ctx context.Context, scheduleID string) ([]models.ServiceDate, error)
}

type scheduleAssignmentReader interface {
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.AssignmentDetail, error)
}

type scheduleHistoryRepository interface {
	ListAll(ctx context.Context) ([]models.AssignmentHistory, error)
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, entries []models.AssignmentHistory) error
	DeleteByServiceDates(ctx context.Context, exec sqlx.ExtContext, dates []time.Time) error
}

type scheduleCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ScheduleService runs the monthly lifecycle: generate a proposal, save it
// as a draft, publish, archive. Saves and status transitions for one
// (year, month) are serialised with a transaction-scoped advisory lock.
type ScheduleService struct {
	schedules   scheduleRepository
	assignments scheduleAssignmentReader
	history     scheduleHistoryRepository
	loader      *engineInputLoader
	cache       scheduleCacheInvalidator
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	store       *proposalStore
}

// NewScheduleService wires schedule lifecycle dependencies.
func NewScheduleService(
	schedules scheduleRepository,
	assignments scheduleAssignmentReader,
	history scheduleHistoryRepository,
	people snapshotPeopleReader,
	jobs snapshotJobsReader,
	windows snapshotUnavailabilityReader,
	siblings snapshotSiblingReader,
	cache scheduleCacheInvalidator,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.SchedulerConfig,
) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	return &ScheduleService{
		schedules:   schedules,
		assignments: assignments,
		history:     history,
		loader:      newEngineInputLoader(people, jobs, windows, siblings, history, cfg),
		cache:       cache,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		store:       newProposalStore(cfg.ProposalTTL),
	}
}

// Generate builds a proposal for the Sundays of one month. The proposal is
// held in memory under a TTL; nothing is persisted until Save.
func (s *ScheduleService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	if err := s.ensureMonthFree(ctx, req.Year, req.Month); err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = scheduleName(req.Year, req.Month)
	}

	input, names, err := s.loader.load(ctx, req.Year, req.Month, name)
	if err != nil {
		return nil, err
	}
	engine, err := scheduler.NewEngine(input)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	preview, err := engine.Generate(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.Clone(appErrors.ErrCancelled, "schedule generation cancelled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule generation failed")
	}

	proposal := scheduleProposal{
		ProposalID:  uuid.NewString(),
		Preview:     preview,
		PersonNames: names,
		RequestedAt: time.Now().UTC(),
	}
	s.store.Save(proposal)

	s.logger.Info("schedule proposal generated",
		zap.String("proposal_id", proposal.ProposalID),
		zap.Int("year", req.Year),
		zap.Int("month", req.Month),
		zap.Int("conflicts", len(preview.Conflicts)))

	return &dto.GenerateScheduleResponse{
		ProposalID:     proposal.ProposalID,
		Year:           preview.Year,
		Month:          int(preview.Month),
		Name:           preview.Name,
		Dates:          dateStrings(preview.Dates),
		Slots:          slotViewsFromPreview(preview.Slots, nil, names),
		Conflicts:      conflictViews(preview.Conflicts),
		FairnessScores: fairnessViews(preview.FairnessScores),
	}, nil
}

// Save persists a proposal as a DRAFT schedule. Unresolved conflicts do not
// block the save; their slots are stored empty and the publish gate keeps
// the draft from going out until every slot is filled.
func (s *ScheduleService) Save(ctx context.Context, req dto.SaveScheduleRequest) (*dto.ScheduleDetailResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save schedule payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	preview := proposal.Preview

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = database.AdvisoryXactLock(ctx, tx, monthLockKey(preview.Year, int(preview.Month))); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire schedule lock")
		return nil, err
	}
	if err = s.ensureMonthFree(ctx, preview.Year, int(preview.Month)); err != nil {
		return nil, err
	}

	schedule := &models.Schedule{
		Year:   preview.Year,
		Month:  int(preview.Month),
		Name:   preview.Name,
		Status: models.ScheduleDraft,
	}
	if err = s.schedules.Create(ctx, tx, schedule); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
		return nil, err
	}

	serviceDates := make([]models.ServiceDate, 0, len(preview.Dates))
	for _, d := range preview.Dates {
		serviceDates = append(serviceDates, models.ServiceDate{ScheduleID: schedule.ID, Date: d})
	}
	if err = s.schedules.CreateServiceDates(ctx, tx, serviceDates); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create service dates")
		return nil, err
	}
	dateIDs := make(map[string]string, len(serviceDates))
	for i := range serviceDates {
		dateIDs[scheduler.DateKey(serviceDates[i].Date)] = serviceDates[i].ID
	}

	rows := make([]models.Assignment, 0, len(preview.Slots))
	for i := range preview.Slots {
		slot := &preview.Slots[i]
		row := models.Assignment{
			ServiceDateID:  dateIDs[scheduler.DateKey(slot.Date)],
			JobID:          slot.JobID,
			Position:       slot.Position,
			ManualOverride: slot.ManualOverride,
		}
		if slot.PersonID != "" {
			id := slot.PersonID
			row.PersonID = &id
		}
		if slot.PositionName != "" {
			name := slot.PositionName
			row.PositionName = &name
		}
		rows = append(rows, row)
	}
	if err = s.assignments.BulkCreate(ctx, tx, rows); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist assignments")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule transaction")
		return nil, err
	}

	s.store.Delete(req.ProposalID)
	s.invalidateReportCaches(ctx)

	s.logger.Info("schedule saved",
		zap.String("schedule_id", schedule.ID),
		zap.Int("year", schedule.Year),
		zap.Int("month", schedule.Month))

	slots := slotViewsFromPreview(preview.Slots, rows, proposal.PersonNames)
	return &dto.ScheduleDetailResponse{
		ID:           schedule.ID,
		Year:         schedule.Year,
		Month:        schedule.Month,
		Name:         schedule.Name,
		Status:       string(schedule.Status),
		Dates:        dateStrings(preview.Dates),
		Slots:        slots,
		Completeness: completenessFromViews(slots),
	}, nil
}

// List returns schedule summaries, optionally filtered by year and status.
func (s *ScheduleService) List(ctx context.Context, query dto.ScheduleQuery) ([]models.Schedule, error) {
	filter := models.ScheduleFilter{Year: query.Year}
	if query.Status != "" {
		status, err := parseScheduleStatus(query.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}
	list, err := s.schedules.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return list, nil
}

// Get returns one schedule with its slots and fill state.
func (s *ScheduleService) Get(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error) {
	schedule, err := s.findSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, schedule)
}

// GetByMonth resolves a schedule by its (year, month) key.
func (s *ScheduleService) GetByMonth(ctx context.Context, year, month int) (*dto.ScheduleDetailResponse, error) {
	schedule, err := s.schedules.FindByYearMonth(ctx, year, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no schedule exists for this month")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return s.detail(ctx, schedule)
}

// Completeness reports the publish gate state for one schedule.
func (s *ScheduleService) Completeness(ctx context.Context, id string) (*dto.CompletenessView, error) {
	if _, err := s.findSchedule(ctx, id); err != nil {
		return nil, err
	}
	details, err := s.assignments.ListBySchedule(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	completeness := completenessFromViews(slotViewsFromDetails(details))
	return &completeness, nil
}

// Publish moves a complete draft to PUBLISHED and appends every slot to the
// assignment history log. Publishing an incomplete draft fails with the
// empty slots listed in the error details; publishing twice fails.
func (s *ScheduleService) Publish(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error) {
	schedule, err := s.findSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	switch schedule.Status {
	case models.SchedulePublished:
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "schedule is already published")
	case models.ScheduleArchived:
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "an archived schedule cannot be published")
	}

	details, err := s.assignments.ListBySchedule(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	empty := emptySlotViews(details)
	if len(empty) > 0 {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "schedule has empty slots").
			WithDetails(map[string]interface{}{"empty_slots": empty})
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

	if err = database.AdvisoryXactLock(ctx, tx, monthLockKey(schedule.Year, schedule.Month)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire schedule lock")
		return nil, err
	}
	if err = s.schedules.UpdateStatus(ctx, tx, id, models.SchedulePublished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule status")
		return nil, err
	}

	entries := make([]models.AssignmentHistory, 0, len(details))
	for i := range details {
		d := &details[i]
		entries = append(entries, models.AssignmentHistory{
			PersonID:    *d.PersonID,
			JobID:       d.JobID,
			ServiceDate: d.ServiceDate,
			Position:    d.Position,
		})
	}
	if err = s.history.BulkCreate(ctx, tx, entries); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append assignment history")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publish transaction")
		return nil, err
	}

	s.invalidateReportCaches(ctx)
	s.logger.Info("schedule published",
		zap.String("schedule_id", id),
		zap.Int("assignments", len(entries)))

	schedule.Status = models.SchedulePublished
	return s.detail(ctx, schedule)
}

// Unpublish reverts a published schedule to DRAFT so its slots can be
// edited again. The history rows written at publish time are removed, so a
// later re-publish appends the corrected month exactly once.
func (s *ScheduleService) Unpublish(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error) {
	schedule, err := s.findSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule.Status != models.SchedulePublished {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "only a published schedule can be reverted to draft")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	serviceDates, err := s.schedules.ListServiceDates(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list service dates")
	}
	dates := make([]time.Time, 0, len(serviceDates))
	for i := range serviceDates {
		dates = append(dates, serviceDates[i].Date)
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

	if err = database.AdvisoryXactLock(ctx, tx, monthLockKey(schedule.Year, schedule.Month)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire schedule lock")
		return nil, err
	}
	if err = s.schedules.UpdateStatus(ctx, tx, id, models.ScheduleDraft); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule status")
		return nil, err
	}
	if err = s.history.DeleteByServiceDates(ctx, tx, dates); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove assignment history")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit unpublish transaction")
		return nil, err
	}

	s.invalidateReportCaches(ctx)
	s.logger.Info("schedule reverted to draft", zap.String("schedule_id", id))

	schedule.Status = models.ScheduleDraft
	return s.detail(ctx, schedule)
}

// Archive closes out a published month. Archived schedules stay readable
// and keep their history rows.
func (s *ScheduleService) Archive(ctx context.Context, id string) (*dto.ScheduleDetailResponse, error) {
	schedule, err := s.findSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule.Status != models.SchedulePublished {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "only a published schedule can be archived")
	}
	if err := s.schedules.UpdateStatus(ctx, nil, id, models.ScheduleArchived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule status")
	}

	s.invalidateReportCaches(ctx)
	s.logger.Info("schedule archived", zap.String("schedule_id", id))

	schedule.Status = models.ScheduleArchived
	return s.detail(ctx, schedule)
}

// Delete removes a draft schedule with its service dates and assignments.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	schedule, err := s.findSchedule(ctx, id)
	if err != nil {
		return err
	}
	if schedule.Status != models.ScheduleDraft {
		return appErrors.Clone(appErrors.ErrStateConflict, "only draft schedules can be deleted")
	}
	if err := s.schedules.Delete(ctx, nil, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	s.logger.Info("schedule deleted", zap.String("schedule_id", id))
	return nil
}

func (s *ScheduleService) findSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

func (s *ScheduleService) ensureMonthFree(ctx context.Context, year, month int) error {
	_, err := s.schedules.FindByYearMonth(ctx, year, month)
	if err == nil {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("a schedule for %d-%02d already exists", year, month))
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing schedule")
	}
	return nil
}

func (s *ScheduleService) detail(ctx context.Context, schedule *models.Schedule) (*dto.ScheduleDetailResponse, error) {
	serviceDates, err := s.schedules.ListServiceDates(ctx, schedule.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list service dates")
	}
	details, err := s.assignments.ListBySchedule(ctx, schedule.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	dates := make([]string, 0, len(serviceDates))
	for i := range serviceDates {
		dates = append(dates, scheduler.DateKey(serviceDates[i].Date))
	}
	slots := slotViewsFromDetails(details)
	return &dto.ScheduleDetailResponse{
		ID:           schedule.ID,
		Year:         schedule.Year,
		Month:        schedule.Month,
		Name:         schedule.Name,
		Status:       string(schedule.Status),
		Dates:        dates,
		Slots:        slots,
		Completeness: completenessFromViews(slots),
	}, nil
}

// invalidateReportCaches drops cached report payloads after any write that
// changes what reports would show. Failures are logged, never surfaced.
func (s *ScheduleService) invalidateReportCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, pattern := range []string{"reports:*", "schedules:*"} {
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func parseScheduleStatus(raw string) (models.ScheduleStatus, error) {
	status := models.ScheduleStatus(raw)
	switch status {
	case models.ScheduleDraft, models.SchedulePublished, models.ScheduleArchived:
		return status, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "status must be one of DRAFT, PUBLISHED, ARCHIVED")
}

var spanishMonths = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// scheduleName builds the default display name, e.g. "Enero 2026".
func scheduleName(year, month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("%d-%02d", year, month)
	}
	return fmt.Sprintf("%s %d", spanishMonths[month-1], year)
}

// monthLockKey is the advisory lock key serialising writes for one month.
func monthLockKey(year, month int) string {
	return fmt.Sprintf("schedule:%d-%02d", year, month)
}

func dateStrings(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, scheduler.DateKey(d))
	}
	return out
}

// slotViewsFromPreview renders engine slots. rows carries the persisted
// assignment rows in slot order once the proposal has been saved; nil
// before that.
func slotViewsFromPreview(slots []scheduler.SlotAssignment, rows []models.Assignment, names map[string]string) []dto.ScheduleSlotView {
	out := make([]dto.ScheduleSlotView, 0, len(slots))
	for i := range slots {
		slot := &slots[i]
		view := dto.ScheduleSlotView{
			ServiceDate:    scheduler.DateKey(slot.Date),
			JobID:          slot.JobID,
			JobName:        slot.JobName,
			Position:       slot.Position,
			PositionName:   slot.PositionName,
			ManualOverride: slot.ManualOverride,
		}
		if rows != nil && i < len(rows) {
			view.AssignmentID = rows[i].ID
		}
		if slot.PersonID != "" {
			id := slot.PersonID
			view.PersonID = &id
			if name, ok := names[id]; ok {
				personName := name
				view.PersonName = &personName
			}
		}
		out = append(out, view)
	}
	return out
}

func slotViewsFromDetails(details []models.AssignmentDetail) []dto.ScheduleSlotView {
	out := make([]dto.ScheduleSlotView, 0, len(details))
	for i := range details {
		d := &details[i]
		view := dto.ScheduleSlotView{
			AssignmentID:   d.ID,
			ServiceDate:    scheduler.DateKey(d.ServiceDate),
			JobID:          d.JobID,
			JobName:        d.JobName,
			Position:       d.Position,
			PersonID:       d.PersonID,
			PersonName:     d.PersonName,
			ManualOverride: d.ManualOverride,
		}
		if d.PositionName != nil {
			view.PositionName = *d.PositionName
		}
		out = append(out, view)
	}
	return out
}

func conflictViews(conflicts []scheduler.Conflict) []dto.ScheduleConflictView {
	out := make([]dto.ScheduleConflictView, 0, len(conflicts))
	for i := range conflicts {
		c := &conflicts[i]
		out = append(out, dto.ScheduleConflictView{
			ServiceDate:  scheduler.DateKey(c.Date),
			JobID:        c.JobID,
			JobName:      c.JobName,
			Position:     c.Position,
			PositionName: c.PositionName,
			Code:         c.Code,
			Reason:       c.Reason,
			Message:      c.Message,
		})
	}
	return out
}

func fairnessViews(scores []scheduler.FairnessScore) []dto.FairnessScoreView {
	out := make([]dto.FairnessScoreView, 0, len(scores))
	for i := range scores {
		sc := &scores[i]
		view := dto.FairnessScoreView{
			PersonID:        sc.PersonID,
			PersonName:      sc.PersonName,
			AssignmentCount: sc.CountThisYear,
			Score:           sc.Score,
		}
		if sc.LastService != nil {
			date := scheduler.DateKey(*sc.LastService)
			view.LastServiceDate = &date
		}
		out = append(out, view)
	}
	return out
}

func emptySlotViews(details []models.AssignmentDetail) []dto.EmptySlotView {
	var out []dto.EmptySlotView
	for i := range details {
		d := &details[i]
		if d.PersonID != nil {
			continue
		}
		view := dto.EmptySlotView{
			ServiceDate: scheduler.DateKey(d.ServiceDate),
			JobName:     d.JobName,
		}
		if d.PositionName != nil {
			view.PositionName = *d.PositionName
		}
		out = append(out, view)
	}
	return out
}

func completenessFromViews(slots []dto.ScheduleSlotView) dto.CompletenessView {
	out := dto.CompletenessView{TotalSlots: len(slots), EmptySlots: []dto.EmptySlotView{}}
	for i := range slots {
		if slots[i].PersonID != nil {
			out.FilledSlots++
			continue
		}
		out.EmptySlots = append(out.EmptySlots, dto.EmptySlotView{
			ServiceDate:  slots[i].ServiceDate,
			JobName:      slots[i].JobName,
			PositionName: slots[i].PositionName,
		})
	}
	out.IsComplete = out.FilledSlots == out.TotalSlots
	return out
}

// --- Proposal cache ---

type scheduleProposal struct {
	ProposalID  string
	Preview     *scheduler.Preview
	PersonNames map[string]string
	RequestedAt time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]scheduleProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]scheduleProposal),
	}
}

func (s *proposalStore) Save(proposal scheduleProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string) (scheduleProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return scheduleProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return scheduleProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

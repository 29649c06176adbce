package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	"github.com/parroquia-tools/turnos-api/internal/scheduler"
	"github.com/parroquia-tools/turnos-api/pkg/config"
	"github.com/parroquia-tools/turnos-api/pkg/database"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

type assignmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.AssignmentDetail, error)
	ListByPerson(ctx context.Context, personID string, from time.Time) ([]models.AssignmentDetail, error)
	UpdatePerson(ctx context.Context, exec sqlx.ExtContext, id string, personID *string, manualOverride bool) error
}

type assignmentScheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
}

// AssignmentService applies manual slot edits to draft schedules. Every
// edit runs the same hard rules generation uses, so a person placed by hand
// satisfies qualifications, availability and spacing like anyone else.
// Edits on one month are serialised with the same advisory lock generation
// saves take.
type AssignmentService struct {
	assignments assignmentRepository
	schedules   assignmentScheduleReader
	loader      *engineInputLoader
	cache       scheduleCacheInvalidator
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService wires slot edit dependencies.
func NewAssignmentService(
	assignments assignmentRepository,
	schedules assignmentScheduleReader,
	people snapshotPeopleReader,
	jobs snapshotJobsReader,
	windows snapshotUnavailabilityReader,
	siblings snapshotSiblingReader,
	history snapshotHistoryReader,
	cache scheduleCacheInvalidator,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.SchedulerConfig,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		schedules:   schedules,
		loader:      newEngineInputLoader(people, jobs, windows, siblings, history, cfg),
		cache:       cache,
		tx:          tx,
		validator:   validate,
		logger:      logger,
	}
}

// Replace puts a person into one slot, empty or occupied, and marks it as a
// manual override. Rule violations reject the edit untouched.
func (s *AssignmentService) Replace(ctx context.Context, assignmentID string, req dto.ReplaceAssignmentRequest) (*dto.ScheduleSlotView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid replace payload")
	}
	schedule, err := s.editableSchedule(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	var view dto.ScheduleSlotView
	err = s.withMonthLock(ctx, schedule, func(tx *sqlx.Tx, ec *editContext) error {
		idx, ok := ec.index[assignmentID]
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		ref := ec.state.Slots[idx].Ref()
		next, err := ec.editor.Replace(ec.state, ref, req.PersonID)
		if err != nil {
			return err
		}
		if err := s.assignments.UpdatePerson(ctx, tx, assignmentID, &req.PersonID, true); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
		}
		view = editedSlotView(assignmentID, &next.Slots[idx], ec.names)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCaches(ctx)
	s.logger.Info("assignment replaced",
		zap.String("assignment_id", assignmentID),
		zap.String("person_id", req.PersonID))
	return &view, nil
}

// Clear empties a slot. No rules run; an empty slot only blocks publishing.
func (s *AssignmentService) Clear(ctx context.Context, assignmentID string) (*dto.ScheduleSlotView, error) {
	schedule, err := s.editableSchedule(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	var view dto.ScheduleSlotView
	err = s.withMonthLock(ctx, schedule, func(tx *sqlx.Tx, ec *editContext) error {
		idx, ok := ec.index[assignmentID]
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		ref := ec.state.Slots[idx].Ref()
		next, err := ec.editor.Clear(ec.state, ref)
		if err != nil {
			return err
		}
		if err := s.assignments.UpdatePerson(ctx, tx, assignmentID, nil, next.Slots[idx].ManualOverride); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear assignment")
		}
		view = editedSlotView(assignmentID, &next.Slots[idx], ec.names)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCaches(ctx)
	s.logger.Info("assignment cleared", zap.String("assignment_id", assignmentID))
	return &view, nil
}

// Swap exchanges the occupants of two filled slots of one schedule. Both
// directions are validated; on any violation neither slot changes.
func (s *AssignmentService) Swap(ctx context.Context, req dto.SwapAssignmentsRequest) ([]dto.ScheduleSlotView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}
	schedule, err := s.sameDraftSchedule(ctx, req.AssignmentIDA, req.AssignmentIDB)
	if err != nil {
		return nil, err
	}

	var views []dto.ScheduleSlotView
	err = s.withMonthLock(ctx, schedule, func(tx *sqlx.Tx, ec *editContext) error {
		ia, ok := ec.index[req.AssignmentIDA]
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		ib, ok := ec.index[req.AssignmentIDB]
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		next, err := ec.editor.Swap(ec.state, ec.state.Slots[ia].Ref(), ec.state.Slots[ib].Ref())
		if err != nil {
			return err
		}
		for _, i := range []int{ia, ib} {
			slot := &next.Slots[i]
			personID := slot.PersonID
			if err := s.assignments.UpdatePerson(ctx, tx, ec.details[i].ID, &personID, true); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
			}
			views = append(views, editedSlotView(ec.details[i].ID, slot, ec.names))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCaches(ctx)
	s.logger.Info("assignments swapped",
		zap.String("assignment_a", req.AssignmentIDA),
		zap.String("assignment_b", req.AssignmentIDB))
	return views, nil
}

// Move relocates the occupant of one slot into an empty slot of the same
// schedule, vacating the source.
func (s *AssignmentService) Move(ctx context.Context, req dto.MoveAssignmentRequest) ([]dto.ScheduleSlotView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	schedule, err := s.sameDraftSchedule(ctx, req.FromAssignmentID, req.ToAssignmentID)
	if err != nil {
		return nil, err
	}

	var views []dto.ScheduleSlotView
	err = s.withMonthLock(ctx, schedule, func(tx *sqlx.Tx, ec *editContext) error {
		is, ok := ec.index[req.FromAssignmentID]
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		id, ok := ec.index[req.ToAssignmentID]
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		next, err := ec.editor.Move(ec.state, ec.state.Slots[is].Ref(), ec.state.Slots[id].Ref())
		if err != nil {
			return err
		}
		personID := next.Slots[id].PersonID
		if err := s.assignments.UpdatePerson(ctx, tx, ec.details[id].ID, &personID, true); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
		}
		if err := s.assignments.UpdatePerson(ctx, tx, ec.details[is].ID, nil, next.Slots[is].ManualOverride); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to vacate assignment")
		}
		views = append(views,
			editedSlotView(ec.details[is].ID, &next.Slots[is], ec.names),
			editedSlotView(ec.details[id].ID, &next.Slots[id], ec.names))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCaches(ctx)
	s.logger.Info("assignment moved",
		zap.String("from", req.FromAssignmentID),
		zap.String("to", req.ToAssignmentID))
	return views, nil
}

// MyAssignments returns a person's slots on published schedules from the
// given date onward. A zero from defaults to today.
func (s *AssignmentService) MyAssignments(ctx context.Context, personID string, from time.Time) ([]dto.MyAssignmentView, error) {
	if personID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "person id is required")
	}
	if from.IsZero() {
		now := time.Now().UTC()
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	details, err := s.assignments.ListByPerson(ctx, personID, from)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	views := make([]dto.MyAssignmentView, 0, len(details))
	for i := range details {
		d := &details[i]
		view := dto.MyAssignmentView{
			AssignmentID: d.ID,
			ServiceDate:  scheduler.DateKey(d.ServiceDate),
			JobName:      d.JobName,
			Position:     d.Position,
		}
		if d.PositionName != nil {
			view.PositionName = *d.PositionName
		}
		views = append(views, view)
	}
	return views, nil
}

// editableSchedule resolves the assignment's schedule and gates on DRAFT.
func (s *AssignmentService) editableSchedule(ctx context.Context, assignmentID string) (*models.Schedule, error) {
	if assignmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment id is required")
	}
	detail, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	schedule, err := s.schedules.FindByID(ctx, detail.ScheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if schedule.Status != models.ScheduleDraft {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "slots can only be edited on a draft schedule; revert it to draft first")
	}
	return schedule, nil
}

// sameDraftSchedule gates two-slot operations: both assignments must belong
// to one draft schedule.
func (s *AssignmentService) sameDraftSchedule(ctx context.Context, idA, idB string) (*models.Schedule, error) {
	if idA == idB {
		return nil, appErrors.Clone(appErrors.ErrValidation, "two distinct assignments are required")
	}
	a, err := s.assignments.FindByID(ctx, idA)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	b, err := s.assignments.FindByID(ctx, idB)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if a.ScheduleID != b.ScheduleID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignments belong to different schedules")
	}
	return s.editableSchedule(ctx, idA)
}

// editContext carries everything one edit operation works on, rebuilt under
// the month lock so concurrent edits see each other.
type editContext struct {
	details []models.AssignmentDetail
	state   *scheduler.ScheduleState
	index   map[string]int
	editor  *scheduler.Editor
	names   map[string]string
}

// withMonthLock opens a transaction, takes the month's advisory lock,
// rebuilds the edit context from current rows and runs fn. fn persists
// through the transaction it receives.
func (s *AssignmentService) withMonthLock(ctx context.Context, schedule *models.Schedule, fn func(tx *sqlx.Tx, ec *editContext) error) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = database.AdvisoryXactLock(ctx, tx, monthLockKey(schedule.Year, schedule.Month)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire schedule lock")
		return err
	}

	details, listErr := s.assignments.ListBySchedule(ctx, schedule.ID)
	if listErr != nil {
		err = appErrors.Wrap(listErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
		return err
	}
	input, names, loadErr := s.loader.load(ctx, schedule.Year, schedule.Month, schedule.Name)
	if loadErr != nil {
		err = loadErr
		return err
	}
	editor, edErr := scheduler.NewEditor(input)
	if edErr != nil {
		err = appErrors.Clone(appErrors.ErrValidation, edErr.Error())
		return err
	}
	state, index := stateFromDetails(schedule, details)
	ec := &editContext{details: details, state: state, index: index, editor: editor, names: names}

	if err = fn(tx, ec); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit edit transaction")
		return err
	}
	return nil
}

func (s *AssignmentService) invalidateCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, pattern := range []string{"reports:*", "schedules:*"} {
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

// stateFromDetails projects persisted rows into an editable state. The
// returned index maps assignment ids to slot positions.
func stateFromDetails(schedule *models.Schedule, details []models.AssignmentDetail) (*scheduler.ScheduleState, map[string]int) {
	state := &scheduler.ScheduleState{
		Year:  schedule.Year,
		Month: time.Month(schedule.Month),
		Slots: make([]scheduler.SlotAssignment, 0, len(details)),
	}
	index := make(map[string]int, len(details))
	for i := range details {
		d := &details[i]
		slot := scheduler.SlotAssignment{
			Date:           d.ServiceDate,
			JobID:          d.JobID,
			JobName:        d.JobName,
			Position:       d.Position,
			ManualOverride: d.ManualOverride,
		}
		if d.PositionName != nil {
			slot.PositionName = *d.PositionName
		}
		if d.PersonID != nil {
			slot.PersonID = *d.PersonID
		}
		state.Slots = append(state.Slots, slot)
		index[d.ID] = i
	}
	return state, index
}

func editedSlotView(assignmentID string, slot *scheduler.SlotAssignment, names map[string]string) dto.ScheduleSlotView {
	view := dto.ScheduleSlotView{
		AssignmentID:   assignmentID,
		ServiceDate:    scheduler.DateKey(slot.Date),
		JobID:          slot.JobID,
		JobName:        slot.JobName,
		Position:       slot.Position,
		PositionName:   slot.PositionName,
		ManualOverride: slot.ManualOverride,
	}
	if slot.PersonID != "" {
		id := slot.PersonID
		view.PersonID = &id
		if name, ok := names[id]; ok {
			personName := name
			view.PersonName = &personName
		}
	}
	return view
}

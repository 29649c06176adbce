package scheduler

import (
	"fmt"
	"sort"

	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

// Editor validates and applies manual edits on a draft schedule state. It
// shares the engine's snapshot and indexes; every operation is value
// semantic and returns a new state, leaving the input untouched.
type Editor struct {
	e *Engine
}

// NewEditor builds an editor over the same snapshot shape Generate uses.
// The base history must not contain the draft being edited; drafts only
// reach the history log on publish.
func NewEditor(input Input) (*Editor, error) {
	e, err := NewEngine(input)
	if err != nil {
		return nil, err
	}
	return &Editor{e: e}, nil
}

// Replace puts personID into the slot after running every hard rule, and
// marks the slot as a manual override.
func (ed *Editor) Replace(state *ScheduleState, ref SlotRef, personID string) (*ScheduleState, error) {
	if err := ed.ValidateReplace(state, ref, personID); err != nil {
		return nil, err
	}
	out := state.Clone()
	i := out.indexOf(ref)
	out.Slots[i].PersonID = personID
	out.Slots[i].ManualOverride = true
	return out, nil
}

// ValidateReplace runs the full rule chain for putting personID into the
// slot, with the slot itself vacated, and returns the first violation.
func (ed *Editor) ValidateReplace(state *ScheduleState, ref SlotRef, personID string) error {
	i, err := ed.slotIndex(state, ref)
	if err != nil {
		return err
	}
	p, ok := ed.e.peopleByID[personID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("person %q not found in roster", personID))
	}
	job, ok := ed.e.jobsByID[state.Slots[i].JobID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("job %q not found in snapshot", state.Slots[i].JobID))
	}

	exclude := map[slotKey]bool{refKey(ref): true}
	hist := ed.workingHistory(state, exclude)
	return ed.validatePlacement(state, hist, ref, p, job, exclude)
}

// Clear empties the slot. Clearing runs no rules and keeps the manual
// override flag as it was.
func (ed *Editor) Clear(state *ScheduleState, ref SlotRef) (*ScheduleState, error) {
	i, err := ed.slotIndex(state, ref)
	if err != nil {
		return nil, err
	}
	out := state.Clone()
	out.Slots[i].PersonID = ""
	return out, nil
}

// Swap exchanges the occupants of two filled slots. Both directions run the
// full rule chain; on any violation nothing changes.
func (ed *Editor) Swap(state *ScheduleState, a, b SlotRef) (*ScheduleState, error) {
	ia, err := ed.slotIndex(state, a)
	if err != nil {
		return nil, err
	}
	ib, err := ed.slotIndex(state, b)
	if err != nil {
		return nil, err
	}
	if ia == ib {
		return nil, appErrors.Clone(appErrors.ErrValidation, "swap requires two distinct slots")
	}
	pa, pb := state.Slots[ia].PersonID, state.Slots[ib].PersonID
	if pa == "" || pb == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "swap requires both slots to be filled")
	}

	exclude := map[slotKey]bool{refKey(a): true, refKey(b): true}
	hist := ed.workingHistory(state, exclude)
	if err := ed.validatePlacementID(state, hist, a, pb, exclude); err != nil {
		return nil, err
	}
	if err := ed.validatePlacementID(state, hist, b, pa, exclude); err != nil {
		return nil, err
	}

	out := state.Clone()
	out.Slots[ia].PersonID = pb
	out.Slots[ia].ManualOverride = true
	out.Slots[ib].PersonID = pa
	out.Slots[ib].ManualOverride = true
	return out, nil
}

// Move relocates the occupant of src into the empty slot dst, validating
// the destination like a replace. The vacated source keeps its override
// flag, matching Clear.
func (ed *Editor) Move(state *ScheduleState, src, dst SlotRef) (*ScheduleState, error) {
	is, err := ed.slotIndex(state, src)
	if err != nil {
		return nil, err
	}
	id, err := ed.slotIndex(state, dst)
	if err != nil {
		return nil, err
	}
	if is == id {
		return nil, appErrors.Clone(appErrors.ErrValidation, "move requires two distinct slots")
	}
	personID := state.Slots[is].PersonID
	if personID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source slot is empty")
	}
	if state.Slots[id].PersonID != "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "destination slot is occupied")
	}

	exclude := map[slotKey]bool{refKey(src): true}
	hist := ed.workingHistory(state, exclude)
	if err := ed.validatePlacementID(state, hist, dst, personID, exclude); err != nil {
		return nil, err
	}

	out := state.Clone()
	out.Slots[id].PersonID = personID
	out.Slots[id].ManualOverride = true
	out.Slots[is].PersonID = ""
	return out, nil
}

// Completeness counts filled slots and lists the open ones, ordered by
// (date, job name, position name).
func (s *ScheduleState) Completeness() Completeness {
	c := Completeness{TotalSlots: len(s.Slots), EmptySlots: []EmptySlot{}}
	for _, slot := range s.Slots {
		if slot.PersonID != "" {
			c.FilledSlots++
			continue
		}
		c.EmptySlots = append(c.EmptySlots, EmptySlot{
			ServiceDate:  slot.Date,
			JobName:      slot.JobName,
			PositionName: slot.PositionName,
		})
	}
	sort.Slice(c.EmptySlots, func(i, j int) bool {
		ei, ej := c.EmptySlots[i], c.EmptySlots[j]
		if !ei.ServiceDate.Equal(ej.ServiceDate) {
			return ei.ServiceDate.Before(ej.ServiceDate)
		}
		if ei.JobName != ej.JobName {
			return ei.JobName < ej.JobName
		}
		return ei.PositionName < ej.PositionName
	})
	c.IsComplete = c.FilledSlots == c.TotalSlots
	return c
}

// validatePlacementID resolves person and job before delegating, so swap
// and move share the replace rule chain.
func (ed *Editor) validatePlacementID(state *ScheduleState, hist *HistoryIndex, ref SlotRef, personID string, exclude map[slotKey]bool) error {
	p, ok := ed.e.peopleByID[personID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("person %q not found in roster", personID))
	}
	job, ok := ed.e.jobsByID[ref.JobID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("job %q not found in snapshot", ref.JobID))
	}
	return ed.validatePlacement(state, hist, ref, p, job, exclude)
}

// validatePlacement runs the hard rules for putting p into the slot at ref.
// The rules read the rest of the schedule through hist and through the
// state slots not listed in exclude.
func (ed *Editor) validatePlacement(state *ScheduleState, hist *HistoryIndex, ref SlotRef, p *Person, job *Job, exclude map[slotKey]bool) error {
	if state.Year != ed.e.year || state.Month != ed.e.month {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("schedule is for %d-%02d but the snapshot targets %d-%02d", state.Year, state.Month, ed.e.year, ed.e.month))
	}

	date := normalizeDate(ref.Date)
	dk := DateKey(date)

	if !p.Active {
		return appErrors.Clone(appErrors.ErrPersonInactive, fmt.Sprintf("%s is inactive", p.FullName()))
	}
	if !ed.e.availability.IsQualified(p.ID, job.ID) {
		return appErrors.Clone(appErrors.ErrNotQualified, fmt.Sprintf("%s is not qualified for %s", p.FullName(), job.Name))
	}
	if ed.e.availability.IsExcluded(p.ID, job.ID) {
		return appErrors.Clone(appErrors.ErrExcludedFromJob, fmt.Sprintf("%s is excluded from %s", p.FullName(), job.Name))
	}
	if ed.e.availability.IsBlocked(p.ID, date) {
		return appErrors.Clone(appErrors.ErrPersonUnavailable, fmt.Sprintf("%s is unavailable on %s", p.FullName(), dk))
	}

	onDate := make(map[string]bool)
	for _, slot := range state.Slots {
		if slot.PersonID == "" || exclude[slotRefKey(&slot)] || DateKey(slot.Date) != dk {
			continue
		}
		onDate[slot.PersonID] = true
		if slot.PersonID != p.ID {
			continue
		}
		if slot.JobID == job.ID {
			return appErrors.Clone(appErrors.ErrDuplicatePerson,
				fmt.Sprintf("%s already fills %s %q on %s", p.FullName(), slot.JobName, slot.PositionName, dk))
		}
		if job.ExcludesOnSameDay(slot.JobID) {
			return appErrors.Clone(appErrors.ErrDayExclusivity,
				fmt.Sprintf("%s already serves %s on %s", p.FullName(), slot.JobName, dk))
		}
	}

	if hist.ServedInMonth(p.ID, job.ID, state.Year, state.Month) {
		return appErrors.Clone(appErrors.ErrAlreadyAssignedThisMonth,
			fmt.Sprintf("%s already serves %s in %d-%02d", p.FullName(), job.Name, state.Year, state.Month))
	}
	if hist.consecutiveRunWith(p.ID, date) > p.MaxConsecutiveWeeks {
		return appErrors.Clone(appErrors.ErrExceedsConsecutiveWeeks,
			fmt.Sprintf("%s would exceed %d consecutive weeks", p.FullName(), p.MaxConsecutiveWeeks))
	}
	if job.ConsecutiveMonthRestricted {
		if hist.ServedInPriorMonth(p.ID, job.ID, state.Year, state.Month) || hist.ServedInFollowingMonth(p.ID, job.ID, state.Year, state.Month) {
			return appErrors.Clone(appErrors.ErrConsecutiveMonth,
				fmt.Sprintf("%s serves %s in an adjacent month", p.FullName(), job.Name))
		}
	}
	if ed.e.siblings.HasSeparateConflict(p.ID, onDate) {
		return appErrors.Clone(appErrors.ErrSiblingSeparate,
			fmt.Sprintf("a sibling of %s marked separate already serves on %s", p.FullName(), dk))
	}
	return nil
}

// workingHistory layers the draft's own filled slots over the base history,
// so rules see the schedule as it stands. Slots in exclude are the ones an
// operation vacates first.
func (ed *Editor) workingHistory(state *ScheduleState, exclude map[slotKey]bool) *HistoryIndex {
	hist := NewHistoryIndex(ed.e.history, state.Year)
	for i := range state.Slots {
		slot := &state.Slots[i]
		if slot.PersonID == "" || exclude[slotRefKey(slot)] {
			continue
		}
		hist.Record(HistoryEntry{
			PersonID: slot.PersonID,
			JobID:    slot.JobID,
			Date:     slot.Date,
			Position: slot.Position,
		})
	}
	return hist
}

func (ed *Editor) slotIndex(state *ScheduleState, ref SlotRef) (int, error) {
	if i := state.indexOf(ref); i >= 0 {
		return i, nil
	}
	return -1, appErrors.Clone(appErrors.ErrNotFound,
		fmt.Sprintf("no slot for job %q position %d on %s", ref.JobID, ref.Position, DateKey(ref.Date)))
}

func (s *ScheduleState) indexOf(ref SlotRef) int {
	key := refKey(ref)
	for i := range s.Slots {
		if slotRefKey(&s.Slots[i]) == key {
			return i
		}
	}
	return -1
}

func refKey(ref SlotRef) slotKey {
	return slotKey{date: DateKey(ref.Date), jobID: ref.JobID, position: ref.Position}
}

func slotRefKey(s *SlotAssignment) slotKey {
	return slotKey{date: DateKey(s.Date), jobID: s.JobID, position: s.Position}
}

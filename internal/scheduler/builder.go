package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

// ruleOrder fixes the evaluation order of the hard rules. Conflict reports
// break ties between equally strong near-miss reasons by this order.
var ruleOrder = []Reason{
	ReasonInactive,
	ReasonNotQualified,
	ReasonExcludedFromJob,
	ReasonUnavailable,
	ReasonConsecutiveWeeks,
	ReasonAlreadyAssigned,
	ReasonConsecutiveMonth,
	ReasonDayExclusivity,
	ReasonSiblingSeparate,
}

type slotKey struct {
	date     string
	jobID    string
	position int
}

// builder walks the month date by date and fills slots one at a time. It
// owns a working copy of the history, so every commit immediately
// constrains the slots that follow.
type builder struct {
	e       *Engine
	history *HistoryIndex
	scorer  *Scorer

	slots     []SlotAssignment
	slotIdx   map[slotKey]int
	heldJobs  map[string]map[string]map[string]bool // date key -> person -> jobs held
	conflicts []Conflict
}

func newBuilder(e *Engine) *builder {
	history := NewHistoryIndex(e.history, e.year)
	return &builder{
		e:        e,
		history:  history,
		scorer:   NewScorer(e.weights, history, e.siblings),
		slotIdx:  make(map[slotKey]int),
		heldJobs: make(map[string]map[string]map[string]bool),
	}
}

// run produces the preview. Cancellation is honoured between dates only, so
// a cancelled run never leaks a partially filled date.
func (b *builder) run(ctx context.Context) (*Preview, error) {
	dates := SundaysIn(b.e.year, b.e.month)
	b.materialize(dates)

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "schedule generation cancelled")
		}
		for _, job := range b.jobsByScarcity(date) {
			for position := 1; position <= job.PeopleRequired; position++ {
				b.fill(date, job, position)
			}
		}
	}

	sort.Slice(b.conflicts, func(i, j int) bool {
		ci, cj := b.conflicts[i], b.conflicts[j]
		if !ci.Date.Equal(cj.Date) {
			return ci.Date.Before(cj.Date)
		}
		if ci.JobID != cj.JobID {
			return ci.JobID < cj.JobID
		}
		return ci.Position < cj.Position
	})

	preview := &Preview{
		Year:           b.e.year,
		Month:          b.e.month,
		Name:           b.e.name,
		Dates:          dates,
		Slots:          b.slots,
		Conflicts:      b.conflicts,
		FairnessScores: b.fairness(),
	}
	if preview.Slots == nil {
		preview.Slots = []SlotAssignment{}
	}
	if preview.Conflicts == nil {
		preview.Conflicts = []Conflict{}
	}
	return preview, nil
}

// materialize creates one open slot per (date, active job, position). The
// slice keeps (date, job id, position) order, which is also the emission
// order of the preview.
func (b *builder) materialize(dates []time.Time) {
	for _, date := range dates {
		dk := DateKey(date)
		for i := range b.e.jobs {
			job := &b.e.jobs[i]
			if !job.Active {
				continue
			}
			for position := 1; position <= job.PeopleRequired; position++ {
				b.slotIdx[slotKey{date: dk, jobID: job.ID, position: position}] = len(b.slots)
				b.slots = append(b.slots, SlotAssignment{
					Date:         date,
					JobID:        job.ID,
					JobName:      job.Name,
					Position:     position,
					PositionName: job.PositionName(position),
				})
			}
		}
	}
}

// jobsByScarcity orders the active jobs for one date by how few people pass
// the roster-level rules for them, so the tightest job picks first. Ties
// fall back to job id.
func (b *builder) jobsByScarcity(date time.Time) []*Job {
	type scarcity struct {
		job   *Job
		count int
	}
	ranked := make([]scarcity, 0, len(b.e.jobs))
	for i := range b.e.jobs {
		job := &b.e.jobs[i]
		if !job.Active {
			continue
		}
		count := 0
		for j := range b.e.people {
			if b.e.availability.Eligibility(b.e.people[j].ID, job, date) == ReasonNone {
				count++
			}
		}
		ranked = append(ranked, scarcity{job: job, count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count < ranked[j].count
		}
		return ranked[i].job.ID < ranked[j].job.ID
	})
	jobs := make([]*Job, len(ranked))
	for i, r := range ranked {
		jobs[i] = r.job
	}
	return jobs
}

// fill selects the best candidate for one slot, or records a conflict when
// nobody passes every rule.
func (b *builder) fill(date time.Time, job *Job, position int) {
	dk := DateKey(date)
	onDate := b.personsOnDate(dk)

	var best *Person
	var bestScore float64
	nearMiss := make(map[Reason]int)
	firstFail := make(map[Reason]int)

	for i := range b.e.people {
		p := &b.e.people[i]
		fails := b.failures(p, date, job, onDate)
		if len(fails) == 0 {
			score := b.scorer.Score(p, date, job, position, onDate)
			if best == nil || b.better(p, score, best, bestScore) {
				best, bestScore = p, score
			}
			continue
		}
		firstFail[fails[0]]++
		if len(fails) == 1 {
			nearMiss[fails[0]]++
		}
	}

	if best == nil {
		b.conflicts = append(b.conflicts, b.conflictFor(date, job, position, nearMiss, firstFail))
		return
	}

	idx := b.slotIdx[slotKey{date: dk, jobID: job.ID, position: position}]
	b.slots[idx].PersonID = best.ID
	b.history.Record(HistoryEntry{PersonID: best.ID, JobID: job.ID, Date: date, Position: position})
	b.markHeld(dk, best.ID, job.ID)
}

// failures evaluates every hard rule for the candidate and returns the ones
// that fail, in rule order. Evaluating all rules instead of stopping at the
// first failure feeds the near-miss attribution of conflicts.
func (b *builder) failures(p *Person, date time.Time, job *Job, onDate map[string]bool) []Reason {
	var fails []Reason
	if !p.Active {
		fails = append(fails, ReasonInactive)
	}
	if !b.e.availability.IsQualified(p.ID, job.ID) {
		fails = append(fails, ReasonNotQualified)
	}
	if b.e.availability.IsExcluded(p.ID, job.ID) {
		fails = append(fails, ReasonExcludedFromJob)
	}
	if b.e.availability.IsBlocked(p.ID, date) {
		fails = append(fails, ReasonUnavailable)
	}
	if b.history.ConsecutiveWeeksEndingAt(p.ID, date) >= p.MaxConsecutiveWeeks {
		fails = append(fails, ReasonConsecutiveWeeks)
	}
	if b.history.ServedInMonth(p.ID, job.ID, b.e.year, b.e.month) {
		fails = append(fails, ReasonAlreadyAssigned)
	}
	if job.ConsecutiveMonthRestricted && b.history.ServedInPriorMonth(p.ID, job.ID, b.e.year, b.e.month) {
		fails = append(fails, ReasonConsecutiveMonth)
	}
	for otherJob := range b.heldJobs[DateKey(date)][p.ID] {
		if job.ExcludesOnSameDay(otherJob) {
			fails = append(fails, ReasonDayExclusivity)
			break
		}
	}
	if b.e.siblings.HasSeparateConflict(p.ID, onDate) {
		fails = append(fails, ReasonSiblingSeparate)
	}
	return fails
}

// better decides whether p beats the current best. People arrive in id
// order, so keeping the incumbent on a full tie realises the id tie-break.
func (b *builder) better(p *Person, score float64, best *Person, bestScore float64) bool {
	if score != bestScore {
		return score > bestScore
	}
	pc, bc := b.history.CountThisYear(p.ID), b.history.CountThisYear(best.ID)
	if pc != bc {
		return pc < bc
	}
	pLast, pServed := b.history.LastServiceDate(p.ID)
	bLast, bServed := b.history.LastServiceDate(best.ID)
	if pServed != bServed {
		return !pServed
	}
	if pServed && !pLast.Equal(bLast) {
		return pLast.Before(bLast)
	}
	return false
}

func (b *builder) conflictFor(date time.Time, job *Job, position int, nearMiss, firstFail map[Reason]int) Conflict {
	reason := strongestReason(nearMiss)
	if reason == ReasonNone {
		reason = strongestReason(firstFail)
	}
	if reason == ReasonNone {
		reason = ReasonNotQualified
	}
	positionName := job.PositionName(position)
	return Conflict{
		Date:         date,
		JobID:        job.ID,
		JobName:      job.Name,
		Position:     position,
		PositionName: positionName,
		Code:         ConflictCodeInsufficientPeople,
		Reason:       string(reason),
		Message:      fmt.Sprintf("no eligible person for %s %q on %s: %s", job.Name, positionName, DateKey(date), reason.Message()),
	}
}

// strongestReason picks the reason eliminating the most people; ruleOrder
// breaks ties.
func strongestReason(counts map[Reason]int) Reason {
	best, bestCount := ReasonNone, 0
	for _, r := range ruleOrder {
		if counts[r] > bestCount {
			best, bestCount = r, counts[r]
		}
	}
	return best
}

func (b *builder) personsOnDate(dk string) map[string]bool {
	held := b.heldJobs[dk]
	onDate := make(map[string]bool, len(held))
	for personID := range held {
		onDate[personID] = true
	}
	return onDate
}

func (b *builder) markHeld(dk, personID, jobID string) {
	persons := b.heldJobs[dk]
	if persons == nil {
		persons = make(map[string]map[string]bool)
		b.heldJobs[dk] = persons
	}
	jobs := persons[personID]
	if jobs == nil {
		jobs = make(map[string]bool)
		persons[personID] = jobs
	}
	jobs[jobID] = true
}

// fairness ranks the active roster over the working history, so the report
// already reflects the slots this run committed.
func (b *builder) fairness() []FairnessScore {
	active := make([]Person, 0, len(b.e.people))
	for _, p := range b.e.people {
		if p.Active {
			active = append(active, p)
		}
	}
	return fairnessScores(active, b.history)
}

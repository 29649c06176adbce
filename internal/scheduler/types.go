// Package scheduler implements the monthly rota generation engine: given an
// immutable snapshot of the roster, the jobs, availability, sibling rules and
// past assignments, it produces a proposed schedule for one (year, month)
// together with the conflicts it could not resolve.
//
// The engine is single-threaded and does no I/O. Given identical input the
// output is byte-identical; every internal iteration runs over sorted data.
package scheduler

import (
	"strings"
	"time"
)

// Person is the engine view of a roster member.
type Person struct {
	ID                  string
	FirstName           string
	LastName            string
	Active              bool
	TargetGapWeeks      int
	MaxConsecutiveWeeks int
	PreferenceLevel     int
	QualifiedJobIDs     []string
	ExcludedJobIDs      []string
}

// FullName joins the name parts for conflict and report payloads.
func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Position is a numbered sub-role within a job.
type Position struct {
	Number int
	Name   string
}

// Job is the engine view of a role category. Positions are ordered with
// contiguous numbers starting at 1; len(Positions) == PeopleRequired.
// Inactive jobs receive no slots but stay in the snapshot so history and
// qualifications referencing them keep resolving.
type Job struct {
	ID                         string
	Name                       string
	PeopleRequired             int
	Active                     bool
	Positions                  []Position
	ConsecutiveMonthRestricted bool
	// DayExclusiveWith holds the resolved same-day exclusion table: job IDs
	// a person may not combine with this job on one service date.
	DayExclusiveWith map[string]bool
}

// ExcludesOnSameDay reports whether the given job may not share a person
// with this job on one date.
func (j *Job) ExcludesOnSameDay(otherJobID string) bool {
	if j.ID == otherJobID {
		return false
	}
	return j.DayExclusiveWith[otherJobID]
}

// PositionName returns the display name for a position number, falling back
// to the bare number when the job has no such position.
func (j *Job) PositionName(number int) string {
	for _, p := range j.Positions {
		if p.Number == number {
			return p.Name
		}
	}
	return ""
}

// Unavailability blocks a person over a date range. Recurring ranges repeat
// every year on the same (month, day) window.
type Unavailability struct {
	PersonID  string
	Start     time.Time
	End       time.Time
	Recurring bool
}

// SiblingGroup relates volunteers for pairing decisions.
type SiblingGroup struct {
	ID        string
	Rule      PairingRule
	MemberIDs []string
}

// PairingRule mirrors the persisted group rule.
type PairingRule string

const (
	RuleTogether PairingRule = "TOGETHER"
	RuleSeparate PairingRule = "SEPARATE"
)

// PairingIntent is the resolved relation between two persons.
type PairingIntent int

const (
	IntentNeutral PairingIntent = iota
	IntentTogetherPreferred
	IntentSeparateForbidden
)

// HistoryEntry is one past assignment as read from the append-only log.
type HistoryEntry struct {
	PersonID string
	JobID    string
	Date     time.Time
	Position int
}

// Weights tune the fairness scorer. They are fixed for one generation run.
type Weights struct {
	Fairness  float64
	Recency   float64
	Pref      float64
	Frequency float64
	Sibling   float64
	Rotation  float64
}

// DefaultWeights returns the production defaults.
func DefaultWeights() Weights {
	return Weights{
		Fairness:  0.70,
		Recency:   0.20,
		Pref:      0.10,
		Frequency: 0.10,
		Sibling:   0.15,
		Rotation:  0.30,
	}
}

// zero reports whether no weight is set, meaning defaults should apply.
func (w Weights) zero() bool {
	return w.Fairness == 0 && w.Recency == 0 && w.Pref == 0 &&
		w.Frequency == 0 && w.Sibling == 0 && w.Rotation == 0
}

// Input is the immutable snapshot one engine instance works from. Slices may
// arrive in any order; the engine sorts its own copies.
type Input struct {
	Year           int
	Month          time.Month
	Name           string
	People         []Person
	Jobs           []Job
	Unavailability []Unavailability
	SiblingGroups  []SiblingGroup
	History        []HistoryEntry
	Weights        Weights

	// YearMin and YearMax bound the accepted target year. Zero values fall
	// back to 2020 and 2100.
	YearMin int
	YearMax int
}

// SlotRef addresses one slot by its coordinates.
type SlotRef struct {
	Date     time.Time
	JobID    string
	Position int
}

// SlotAssignment is one filled or empty slot of a schedule.
type SlotAssignment struct {
	Date           time.Time `json:"service_date"`
	JobID          string    `json:"job_id"`
	JobName        string    `json:"job_name"`
	Position       int       `json:"position"`
	PositionName   string    `json:"position_name"`
	PersonID       string    `json:"person_id,omitempty"` // empty marks an open slot
	ManualOverride bool      `json:"manual_override"`
}

// Ref returns the slot coordinates.
func (s *SlotAssignment) Ref() SlotRef {
	return SlotRef{Date: s.Date, JobID: s.JobID, Position: s.Position}
}

// ScheduleState is a value snapshot of a draft schedule used by the edit
// operations. Apply functions return a new state and never mutate.
type ScheduleState struct {
	Year  int
	Month time.Month
	Slots []SlotAssignment
}

// Clone copies the state so edits stay value-semantic.
func (s *ScheduleState) Clone() *ScheduleState {
	out := &ScheduleState{Year: s.Year, Month: s.Month}
	out.Slots = make([]SlotAssignment, len(s.Slots))
	copy(out.Slots, s.Slots)
	return out
}

// Conflict records a slot the builder could not fill.
type Conflict struct {
	Date         time.Time `json:"service_date"`
	JobID        string    `json:"job_id"`
	JobName      string    `json:"job_name"`
	Position     int       `json:"position"`
	PositionName string    `json:"position_name"`
	Code         string    `json:"code"`
	Reason       string    `json:"reason"`
	Message      string    `json:"message"`
}

// ConflictCodeInsufficientPeople marks a slot with no eligible candidate.
const ConflictCodeInsufficientPeople = "INSUFFICIENT_PEOPLE"

// FairnessScore summarises one person's standing for reporting.
type FairnessScore struct {
	PersonID      string     `json:"person_id"`
	PersonName    string     `json:"person_name"`
	CountThisYear int        `json:"assignment_count"`
	LastService   *time.Time `json:"last_service_date,omitempty"`
	Score         float64    `json:"fairness_score"`
}

// Preview is the full result of one generation run.
type Preview struct {
	Year           int             `json:"year"`
	Month          time.Month      `json:"month"`
	Name           string          `json:"name"`
	Dates          []time.Time     `json:"service_dates"`
	Slots          []SlotAssignment `json:"slots"`
	Conflicts      []Conflict      `json:"conflicts"`
	FairnessScores []FairnessScore `json:"fairness_scores"`
}

// State converts the preview into an editable schedule state.
func (p *Preview) State() *ScheduleState {
	state := &ScheduleState{Year: p.Year, Month: p.Month}
	state.Slots = make([]SlotAssignment, len(p.Slots))
	copy(state.Slots, p.Slots)
	return state
}

// EmptySlot identifies an unfilled slot in completeness reports.
type EmptySlot struct {
	ServiceDate  time.Time `json:"service_date"`
	JobName      string    `json:"job_name"`
	PositionName string    `json:"position_name"`
}

// Completeness reports whether a schedule may be published.
type Completeness struct {
	IsComplete  bool        `json:"is_complete"`
	TotalSlots  int         `json:"total_slots"`
	FilledSlots int         `json:"filled_slots"`
	EmptySlots  []EmptySlot `json:"empty_slots"`
}

// DateKey formats a date the way slot maps and JSON payloads key it.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// normalizeDate strips clock and zone so date math stays exact.
func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

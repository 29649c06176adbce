package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

// Engine generates a schedule preview for one (year, month) from an
// immutable input snapshot. Construct with NewEngine, call Generate once.
type Engine struct {
	year   int
	month  time.Month
	name   string
	people []Person
	jobs   []Job

	peopleByID map[string]*Person
	jobsByID   map[string]*Job

	availability *AvailabilityIndex
	siblings     *SiblingIndex
	history      []HistoryEntry
	weights      Weights

	consumed bool
}

// NewEngine validates the snapshot and builds the derived indexes. Any
// structural problem (bad month, out-of-range year, duplicate or unknown
// ids, malformed jobs) is reported as a validation error before any slot
// work starts.
func NewEngine(input Input) (*Engine, error) {
	if input.Month < time.January || input.Month > time.December {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("month %d is out of range 1-12", int(input.Month)))
	}
	yearMin, yearMax := input.YearMin, input.YearMax
	if yearMin == 0 {
		yearMin = 2020
	}
	if yearMax == 0 {
		yearMax = 2100
	}
	if input.Year < yearMin || input.Year > yearMax {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("year %d is out of range %d-%d", input.Year, yearMin, yearMax))
	}

	e := &Engine{
		year:       input.Year,
		month:      input.Month,
		name:       input.Name,
		people:     make([]Person, len(input.People)),
		jobs:       make([]Job, len(input.Jobs)),
		peopleByID: make(map[string]*Person, len(input.People)),
		jobsByID:   make(map[string]*Job, len(input.Jobs)),
		weights:    input.Weights,
	}
	if e.weights.zero() {
		e.weights = DefaultWeights()
	}

	copy(e.people, input.People)
	sort.Slice(e.people, func(i, j int) bool { return e.people[i].ID < e.people[j].ID })
	for i := range e.people {
		p := &e.people[i]
		if p.ID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "person with empty id")
		}
		if _, dup := e.peopleByID[p.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate person id %q", p.ID))
		}
		if p.MaxConsecutiveWeeks < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("person %q: max consecutive weeks must be at least 1", p.ID))
		}
		if p.PreferenceLevel < 1 || p.PreferenceLevel > 10 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("person %q: preference level must be between 1 and 10", p.ID))
		}
		if p.TargetGapWeeks < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("person %q: target gap weeks must be at least 1", p.ID))
		}
		e.peopleByID[p.ID] = p
	}

	copy(e.jobs, input.Jobs)
	sort.Slice(e.jobs, func(i, j int) bool { return e.jobs[i].ID < e.jobs[j].ID })
	for i := range e.jobs {
		j := &e.jobs[i]
		if j.ID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "job with empty id")
		}
		if _, dup := e.jobsByID[j.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate job id %q", j.ID))
		}
		if j.PeopleRequired < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("job %q: people required must be at least 1", j.ID))
		}
		if len(j.Positions) != j.PeopleRequired {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("job %q: expected %d positions, got %d", j.ID, j.PeopleRequired, len(j.Positions)))
		}
		for k, pos := range j.Positions {
			if pos.Number != k+1 {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("job %q: position numbers must be contiguous starting at 1", j.ID))
			}
		}
		e.jobsByID[j.ID] = j
	}

	for i := range e.people {
		p := &e.people[i]
		for _, jobID := range p.QualifiedJobIDs {
			if _, ok := e.jobsByID[jobID]; !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("person %q qualified for unknown job %q", p.ID, jobID))
			}
		}
		for _, jobID := range p.ExcludedJobIDs {
			if _, ok := e.jobsByID[jobID]; !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("person %q excluded from unknown job %q", p.ID, jobID))
			}
		}
	}
	for _, u := range input.Unavailability {
		if _, ok := e.peopleByID[u.PersonID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unavailability references unknown person %q", u.PersonID))
		}
		if u.End.Before(u.Start) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unavailability for person %q ends before it starts", u.PersonID))
		}
	}
	for _, g := range input.SiblingGroups {
		if g.Rule != RuleTogether && g.Rule != RuleSeparate {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sibling group %q: unknown pairing rule %q", g.ID, g.Rule))
		}
		for _, memberID := range g.MemberIDs {
			if _, ok := e.peopleByID[memberID]; !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sibling group %q references unknown person %q", g.ID, memberID))
			}
		}
	}
	for _, h := range input.History {
		if _, ok := e.peopleByID[h.PersonID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("history references unknown person %q", h.PersonID))
		}
		if _, ok := e.jobsByID[h.JobID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("history references unknown job %q", h.JobID))
		}
	}

	// Unavailability windows can touch the adjacent years through recurring
	// wrap, so the index covers one year on each side.
	years := []int{input.Year - 1, input.Year, input.Year + 1}
	e.availability = NewAvailabilityIndex(input.People, input.Unavailability, years)
	e.siblings = NewSiblingIndex(input.SiblingGroups)

	e.history = make([]HistoryEntry, len(input.History))
	copy(e.history, input.History)

	return e, nil
}

// Generate runs the builder over every Sunday of the target month and
// returns the preview. The engine is single-shot: a second call reports a
// state conflict instead of silently rebuilding on stale indexes.
func (e *Engine) Generate(ctx context.Context) (*Preview, error) {
	if e.consumed {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "engine already generated a preview")
	}
	e.consumed = true
	return newBuilder(e).run(ctx)
}

// Fairness ranks the roster by fairness score for the engine's target year
// using the base history only.
func (e *Engine) Fairness() []FairnessScore {
	return Fairness(e.people, e.history, e.year)
}

// Fairness computes 1/(count+1) per person over the given year's history.
// Output is ordered score descending, person id ascending, so people who
// served least rank first.
func Fairness(people []Person, history []HistoryEntry, year int) []FairnessScore {
	return fairnessScores(people, NewHistoryIndex(history, year))
}

func fairnessScores(people []Person, idx *HistoryIndex) []FairnessScore {
	scores := make([]FairnessScore, 0, len(people))
	for i := range people {
		p := &people[i]
		count := idx.CountThisYear(p.ID)
		var last *time.Time
		if t, ok := idx.LastServiceDate(p.ID); ok {
			lt := t
			last = &lt
		}
		scores = append(scores, FairnessScore{
			PersonID:      p.ID,
			PersonName:    p.FullName(),
			CountThisYear: count,
			LastService:   last,
			Score:         1.0 / float64(count+1),
		})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].PersonID < scores[j].PersonID
	})
	return scores
}

package service

import (
	"context"
	"strings"
	"time"

	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"

	"github.com/parroquia-tools/turnos-api/internal/models"
	"github.com/parroquia-tools/turnos-api/internal/scheduler"
	"github.com/parroquia-tools/turnos-api/pkg/config"
)

type snapshotPeopleReader interface {
	ListAll(ctx context.Context) ([]models.Person, error)
}

type snapshotJobsReader interface {
	List(ctx context.Context, active *bool) ([]models.Job, error)
}

type snapshotUnavailabilityReader interface {
	ListAll(ctx context.Context) ([]models.Unavailability, error)
}

type snapshotSiblingReader interface {
	List(ctx context.Context) ([]models.SiblingGroup, error)
}

type snapshotHistoryReader interface {
	ListAll(ctx context.Context) ([]models.AssignmentHistory, error)
}

// engineInputLoader assembles the immutable snapshot one generation or edit
// validation runs on. The whole roster is loaded, deactivated people and
// jobs included, so old history and qualification rows keep resolving.
type engineInputLoader struct {
	people   snapshotPeopleReader
	jobs     snapshotJobsReader
	windows  snapshotUnavailabilityReader
	siblings snapshotSiblingReader
	history  snapshotHistoryReader
	cfg      config.SchedulerConfig
}

func newEngineInputLoader(
	people snapshotPeopleReader,
	jobs snapshotJobsReader,
	windows snapshotUnavailabilityReader,
	siblings snapshotSiblingReader,
	history snapshotHistoryReader,
	cfg config.SchedulerConfig,
) *engineInputLoader {
	return &engineInputLoader{people: people, jobs: jobs, windows: windows, siblings: siblings, history: history, cfg: cfg}
}

// load builds a scheduler input for the month. personNames is keyed by
// person id for response rendering.
func (l *engineInputLoader) load(ctx context.Context, year, month int, name string) (scheduler.Input, map[string]string, error) {
	var input scheduler.Input

	people, err := l.people.ListAll(ctx)
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	jobs, err := l.jobs.List(ctx, nil)
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load jobs")
	}
	windows, err := l.windows.ListAll(ctx)
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unavailability windows")
	}
	groups, err := l.siblings.List(ctx)
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sibling groups")
	}
	history, err := l.history.ListAll(ctx)
	if err != nil {
		return input, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment history")
	}

	names := make(map[string]string, len(people))
	for i := range people {
		names[people[i].ID] = people[i].FullName()
	}

	input = scheduler.Input{
		Year:           year,
		Month:          time.Month(month),
		Name:           name,
		People:         mapPeople(people, jobs),
		Jobs:           mapJobs(jobs, l.cfg),
		Unavailability: mapWindows(windows),
		SiblingGroups:  mapGroups(groups),
		History:        mapHistory(history),
		Weights: scheduler.Weights{
			Fairness:  l.cfg.WeightFairness,
			Recency:   l.cfg.WeightRecency,
			Pref:      l.cfg.WeightPref,
			Frequency: l.cfg.WeightFrequency,
			Sibling:   l.cfg.WeightSibling,
			Rotation:  l.cfg.WeightBag,
		},
		YearMin: l.cfg.YearMin,
		YearMax: l.cfg.YearMax,
	}
	return input, names, nil
}

func mapPeople(people []models.Person, jobs []models.Job) []scheduler.Person {
	out := make([]scheduler.Person, 0, len(people))
	for i := range people {
		p := &people[i]
		out = append(out, scheduler.Person{
			ID:                  p.ID,
			FirstName:           p.FirstName,
			LastName:            p.LastName,
			Active:              p.Active,
			TargetGapWeeks:      p.PreferredFrequency.TargetGapWeeks(),
			MaxConsecutiveWeeks: p.MaxConsecutiveWeeks,
			PreferenceLevel:     p.PreferenceLevel,
			QualifiedJobIDs:     p.QualifiedJobIDs,
			ExcludedJobIDs:      excludedJobIDs(p, jobs),
		})
	}
	return out
}

// excludedJobIDs resolves the per-person exclusion flags against the job
// list by well-known name.
func excludedJobIDs(p *models.Person, jobs []models.Job) []string {
	var out []string
	for i := range jobs {
		name := strings.ToLower(jobs[i].Name)
		if p.ExcludeMonaguillos && name == models.JobNameMonaguillos {
			out = append(out, jobs[i].ID)
		}
		if p.ExcludeLectores && name == models.JobNameLectores {
			out = append(out, jobs[i].ID)
		}
	}
	return out
}

func mapJobs(jobs []models.Job, cfg config.SchedulerConfig) []scheduler.Job {
	restricted := make(map[string]bool, len(cfg.ConsecutiveMonthJobs))
	for _, name := range cfg.ConsecutiveMonthJobs {
		restricted[strings.ToLower(name)] = true
	}

	out := make([]scheduler.Job, 0, len(jobs))
	for i := range jobs {
		j := &jobs[i]
		positions := make([]scheduler.Position, 0, len(j.Positions))
		for _, pos := range j.Positions {
			positions = append(positions, scheduler.Position{Number: pos.PositionNumber, Name: pos.Name})
		}
		out = append(out, scheduler.Job{
			ID:                         j.ID,
			Name:                       j.Name,
			PeopleRequired:             j.PeopleRequired,
			Active:                     j.Active,
			Positions:                  positions,
			ConsecutiveMonthRestricted: restricted[strings.ToLower(j.Name)],
			DayExclusiveWith:           dayExclusiveWith(j, jobs, cfg.DayExclusivePairs),
		})
	}
	return out
}

// dayExclusiveWith resolves the same-day exclusion table for one job. With
// no configured pairs every pair of distinct jobs excludes, which matches a
// parish where nobody serves two roles in one mass.
func dayExclusiveWith(job *models.Job, jobs []models.Job, pairs []string) map[string]bool {
	out := make(map[string]bool)
	if len(pairs) == 0 {
		for i := range jobs {
			if jobs[i].ID != job.ID {
				out[jobs[i].ID] = true
			}
		}
		return out
	}

	byName := make(map[string]string, len(jobs))
	for i := range jobs {
		byName[strings.ToLower(jobs[i].Name)] = jobs[i].ID
	}
	self := strings.ToLower(job.Name)
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		a := strings.ToLower(strings.TrimSpace(parts[0]))
		b := strings.ToLower(strings.TrimSpace(parts[1]))
		if a == self {
			if id, ok := byName[b]; ok {
				out[id] = true
			}
		}
		if b == self {
			if id, ok := byName[a]; ok {
				out[id] = true
			}
		}
	}
	return out
}

func mapWindows(windows []models.Unavailability) []scheduler.Unavailability {
	out := make([]scheduler.Unavailability, 0, len(windows))
	for i := range windows {
		w := &windows[i]
		out = append(out, scheduler.Unavailability{
			PersonID:  w.PersonID,
			Start:     w.StartDate,
			End:       w.EndDate,
			Recurring: w.Recurring,
		})
	}
	return out
}

func mapGroups(groups []models.SiblingGroup) []scheduler.SiblingGroup {
	out := make([]scheduler.SiblingGroup, 0, len(groups))
	for i := range groups {
		g := &groups[i]
		out = append(out, scheduler.SiblingGroup{
			ID:        g.ID,
			Rule:      scheduler.PairingRule(g.PairingRule),
			MemberIDs: g.MemberIDs,
		})
	}
	return out
}

func mapHistory(entries []models.AssignmentHistory) []scheduler.HistoryEntry {
	out := make([]scheduler.HistoryEntry, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		out = append(out, scheduler.HistoryEntry{
			PersonID: e.PersonID,
			JobID:    e.JobID,
			Date:     e.ServiceDate,
			Position: e.Position,
		})
	}
	return out
}

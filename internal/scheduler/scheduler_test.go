package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

func TestNewEngineRejectsBadInput(t *testing.T) {
	valid := func() Input {
		return Input{
			Year:   2026,
			Month:  time.January,
			People: testRoster(4, "job-mona"),
			Jobs:   []Job{monaguillosJob()},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{name: "month zero", mutate: func(in *Input) { in.Month = 0 }},
		{name: "month thirteen", mutate: func(in *Input) { in.Month = 13 }},
		{name: "year below range", mutate: func(in *Input) { in.Year = 1999 }},
		{name: "year above range", mutate: func(in *Input) { in.Year = 2101 }},
		{name: "duplicate person id", mutate: func(in *Input) { in.People[1].ID = in.People[0].ID }},
		{name: "empty person id", mutate: func(in *Input) { in.People[2].ID = "" }},
		{name: "max consecutive weeks zero", mutate: func(in *Input) { in.People[0].MaxConsecutiveWeeks = 0 }},
		{name: "preference level out of range", mutate: func(in *Input) { in.People[0].PreferenceLevel = 11 }},
		{name: "target gap zero", mutate: func(in *Input) { in.People[0].TargetGapWeeks = 0 }},
		{name: "duplicate job id", mutate: func(in *Input) {
			other := monaguillosJob()
			in.Jobs = append(in.Jobs, other)
		}},
		{name: "people required zero", mutate: func(in *Input) { in.Jobs[0].PeopleRequired = 0 }},
		{name: "position count mismatch", mutate: func(in *Input) { in.Jobs[0].PeopleRequired = 3 }},
		{name: "position numbers with gap", mutate: func(in *Input) { in.Jobs[0].Positions[2].Number = 7 }},
		{name: "qualification for unknown job", mutate: func(in *Input) {
			in.People[0].QualifiedJobIDs = []string{"job-ghost"}
		}},
		{name: "exclusion for unknown job", mutate: func(in *Input) {
			in.People[0].ExcludedJobIDs = []string{"job-ghost"}
		}},
		{name: "unavailability for unknown person", mutate: func(in *Input) {
			in.Unavailability = []Unavailability{{PersonID: "p99", Start: date(2026, time.January, 1), End: date(2026, time.January, 2)}}
		}},
		{name: "unavailability ends before start", mutate: func(in *Input) {
			in.Unavailability = []Unavailability{{PersonID: "p01", Start: date(2026, time.January, 5), End: date(2026, time.January, 2)}}
		}},
		{name: "sibling group with unknown member", mutate: func(in *Input) {
			in.SiblingGroups = []SiblingGroup{{ID: "g1", Rule: RuleSeparate, MemberIDs: []string{"p01", "p99"}}}
		}},
		{name: "sibling group with unknown rule", mutate: func(in *Input) {
			in.SiblingGroups = []SiblingGroup{{ID: "g1", Rule: "APART", MemberIDs: []string{"p01", "p02"}}}
		}},
		{name: "history with unknown person", mutate: func(in *Input) {
			in.History = []HistoryEntry{{PersonID: "p99", JobID: "job-mona", Date: date(2025, time.June, 1), Position: 1}}
		}},
		{name: "history with unknown job", mutate: func(in *Input) {
			in.History = []HistoryEntry{{PersonID: "p01", JobID: "job-ghost", Date: date(2025, time.June, 1), Position: 1}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid()
			tt.mutate(&input)
			_, err := NewEngine(input)
			require.Error(t, err)
			require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestNewEngineAcceptsCustomYearBounds(t *testing.T) {
	input := Input{
		Year:    2019,
		Month:   time.January,
		People:  testRoster(4, "job-mona"),
		Jobs:    []Job{monaguillosJob()},
		YearMin: 2015,
		YearMax: 2030,
	}
	_, err := NewEngine(input)
	require.NoError(t, err)

	input.Year = 2031
	_, err = NewEngine(input)
	require.Error(t, err)
}

func TestEngineGeneratesOnce(t *testing.T) {
	e, err := NewEngine(Input{
		Year:   2026,
		Month:  time.January,
		People: testRoster(4, "job-mona"),
		Jobs:   []Job{monaguillosJob()},
	})
	require.NoError(t, err)

	_, err = e.Generate(context.Background())
	require.NoError(t, err)

	_, err = e.Generate(context.Background())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

func TestGenerateCancellation(t *testing.T) {
	e, err := NewEngine(Input{
		Year:   2026,
		Month:  time.January,
		People: testRoster(16, "job-mona"),
		Jobs:   []Job{monaguillosJob()},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	preview, err := e.Generate(ctx)
	require.Nil(t, preview)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrCancelled.Code, appErrors.FromError(err).Code)
	require.Equal(t, appErrors.StatusClientClosedRequest, appErrors.FromError(err).Status)
}

func TestInactiveJobReceivesNoSlots(t *testing.T) {
	retired := Job{
		ID:             "job-coro",
		Name:           "Coro",
		PeopleRequired: 1,
		Active:         false,
		Positions:      []Position{{Number: 1, Name: "Corista"}},
	}
	people := testRoster(6, "job-mona")
	input := Input{
		Year:   2026,
		Month:  time.January,
		People: people,
		Jobs:   []Job{monaguillosJob(), retired},
		// History against the retired job must still resolve.
		History: []HistoryEntry{
			{PersonID: "p01", JobID: "job-coro", Date: date(2025, time.March, 2), Position: 1},
		},
	}
	preview := generate(t, input)

	for _, s := range preview.Slots {
		require.NotEqual(t, "job-coro", s.JobID)
	}
}

func TestFairnessRanking(t *testing.T) {
	people := testRoster(3, "job-mona")
	history := []HistoryEntry{
		{PersonID: "p02", JobID: "job-mona", Date: date(2026, time.January, 4), Position: 1},
		{PersonID: "p03", JobID: "job-mona", Date: date(2026, time.January, 11), Position: 1},
		{PersonID: "p03", JobID: "job-mona", Date: date(2026, time.February, 8), Position: 2},
		// Prior-year service must not count.
		{PersonID: "p01", JobID: "job-mona", Date: date(2025, time.June, 1), Position: 1},
	}

	scores := Fairness(people, history, 2026)
	require.Len(t, scores, 3)

	require.Equal(t, "p01", scores[0].PersonID)
	require.Equal(t, 0, scores[0].CountThisYear)
	require.InDelta(t, 1.0, scores[0].Score, 1e-9)
	require.NotNil(t, scores[0].LastService)
	require.Equal(t, date(2025, time.June, 1), *scores[0].LastService)

	require.Equal(t, "p02", scores[1].PersonID)
	require.InDelta(t, 0.5, scores[1].Score, 1e-9)

	require.Equal(t, "p03", scores[2].PersonID)
	require.Equal(t, 2, scores[2].CountThisYear)
	require.InDelta(t, 1.0/3, scores[2].Score, 1e-9)
}

func TestPreviewFairnessReflectsTheRun(t *testing.T) {
	input := Input{
		Year:   2026,
		Month:  time.January,
		People: testRoster(16, "job-mona"),
		Jobs:   []Job{monaguillosJob()},
	}
	preview := generate(t, input)

	require.Len(t, preview.FairnessScores, 16)
	for _, fs := range preview.FairnessScores {
		require.Equal(t, 1, fs.CountThisYear, "everyone served once in %s", fs.PersonID)
		require.InDelta(t, 0.5, fs.Score, 1e-9)
	}
}

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecencyTerm(t *testing.T) {
	tests := []struct {
		name string
		gap  float64
		want float64
	}{
		{name: "served last week", gap: 1, want: 0},
		{name: "two weeks", gap: 2, want: 1.0 / 12},
		{name: "seven weeks", gap: 7, want: 0.5},
		{name: "quarter year saturates", gap: 13, want: 1},
		{name: "beyond saturation", gap: 52, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, recencyTerm(tt.gap), 1e-9)
		})
	}
}

func TestFrequencyTerm(t *testing.T) {
	tests := []struct {
		name   string
		target int
		gap    float64
		want   float64
	}{
		{name: "on target weekly", target: 1, gap: 1, want: 1},
		{name: "on target monthly", target: 4, gap: 4, want: 1},
		{name: "half target", target: 4, gap: 2, want: 0.5},
		{name: "past target", target: 4, gap: 6, want: 0.5},
		{name: "twice target hits zero", target: 4, gap: 8, want: 0},
		{name: "far past target clamps", target: 2, gap: 30, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, frequencyTerm(tt.target, tt.gap), 1e-9)
		})
	}
}

func TestScoreComposition(t *testing.T) {
	job := &Job{
		ID:             "job-mona",
		Name:           "Monaguillos",
		PeopleRequired: 2,
		Active:         true,
		Positions:      []Position{{Number: 1, Name: "Monaguillo 1"}, {Number: 2, Name: "Monaguillo 2"}},
	}
	p := &Person{ID: "p01", Active: true, TargetGapWeeks: 2, MaxConsecutiveWeeks: 3, PreferenceLevel: 8}

	// Served two weeks before the slot, so gap = 2 = target.
	history := NewHistoryIndex([]HistoryEntry{
		entry("p01", "job-mona", date(2026, time.January, 4), 1),
	}, 2026)
	siblings := NewSiblingIndex(nil)
	scorer := NewScorer(DefaultWeights(), history, siblings)

	got := scorer.Score(p, date(2026, time.January, 18), job, 2, nil)

	want := 0.70/2 + // one assignment this year
		0.20*(1.0/12) + // gap of two weeks
		0.10*1 + // gap equals the preferred gap
		0.10*0.8 + // preference level 8
		0.30 // position 2 still in the bag
	require.InDelta(t, want, got, 1e-9)
}

func TestScoreNeverServedSkipsGapTerms(t *testing.T) {
	job := &Job{ID: "job-lect", Name: "Lectores", PeopleRequired: 1, Active: true, Positions: []Position{{Number: 1, Name: "Lector 1"}}}
	p := &Person{ID: "p01", Active: true, TargetGapWeeks: 1, MaxConsecutiveWeeks: 3, PreferenceLevel: 5}

	scorer := NewScorer(DefaultWeights(), NewHistoryIndex(nil, 2026), NewSiblingIndex(nil))
	got := scorer.Score(p, date(2026, time.January, 4), job, 1, nil)

	want := 0.70 + 0.10*0.5 + 0.30
	require.InDelta(t, want, got, 1e-9)
}

// A TOGETHER sibling already on the date is the only difference between two
// otherwise identical candidates, and it decides the slot.
func TestScoreTogetherBonusBreaksFairnessTie(t *testing.T) {
	job := &Job{
		ID:             "job-mona",
		Name:           "Monaguillos",
		PeopleRequired: 2,
		Active:         true,
		Positions:      []Position{{Number: 1, Name: "Monaguillo 1"}, {Number: 2, Name: "Monaguillo 2"}},
	}
	p4 := &Person{ID: "p04", Active: true, TargetGapWeeks: 1, MaxConsecutiveWeeks: 3, PreferenceLevel: 5}
	p5 := &Person{ID: "p05", Active: true, TargetGapWeeks: 1, MaxConsecutiveWeeks: 3, PreferenceLevel: 5}

	// Equal history: five services each this year, same dates, same
	// position sequence, so the bag term cancels out.
	var entries []HistoryEntry
	d := date(2026, time.February, 1)
	for i := 0; i < 5; i++ {
		pos := i%2 + 1
		entries = append(entries,
			entry("p04", "job-mona", d, pos),
			entry("p05", "job-mona", d, pos),
		)
		d = d.AddDate(0, 2, 0)
	}
	history := NewHistoryIndex(entries, 2026)
	siblings := NewSiblingIndex([]SiblingGroup{
		{ID: "g1", Rule: RuleTogether, MemberIDs: []string{"p03", "p04"}},
	})
	scorer := NewScorer(DefaultWeights(), history, siblings)

	require.Equal(t, 5, history.CountThisYear("p04"))
	require.Equal(t, 5, history.CountThisYear("p05"))

	onDate := map[string]bool{"p03": true}
	slotDate := date(2026, time.December, 6)

	s4 := scorer.Score(p4, slotDate, job, 2, onDate)
	s5 := scorer.Score(p5, slotDate, job, 2, onDate)
	require.Greater(t, s4, s5)
	require.InDelta(t, DefaultWeights().Sibling, s4-s5, 1e-9)
}

func TestZeroWeightsFallBackToDefaults(t *testing.T) {
	scorer := NewScorer(Weights{}, NewHistoryIndex(nil, 2026), NewSiblingIndex(nil))
	require.Equal(t, DefaultWeights(), scorer.weights)
}

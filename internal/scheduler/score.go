package scheduler

import "time"

// Scorer computes the priority of a candidate for one slot. Higher wins.
// All terms land in [0, 1] before weighting.
type Scorer struct {
	weights  Weights
	history  *HistoryIndex
	siblings *SiblingIndex
}

// NewScorer wires the scorer to the run's indices.
func NewScorer(weights Weights, history *HistoryIndex, siblings *SiblingIndex) *Scorer {
	if weights.zero() {
		weights = DefaultWeights()
	}
	return &Scorer{weights: weights, history: history, siblings: siblings}
}

// Score rates person p for (date, job, position). assignedOnDate holds the
// persons already committed to any slot of the date, feeding the sibling
// bonus.
func (s *Scorer) Score(p *Person, date time.Time, job *Job, position int, assignedOnDate map[string]bool) float64 {
	count := s.history.CountThisYear(p.ID)
	score := s.weights.Fairness / float64(count+1)

	last, served := s.history.LastServiceDate(p.ID)
	if served {
		gap := gapWeeks(last, date)
		score += s.weights.Recency * recencyTerm(gap)
		score += s.weights.Frequency * frequencyTerm(p.TargetGapWeeks, gap)
	}

	score += s.weights.Pref * float64(p.PreferenceLevel) / 10

	if s.siblings.HasTogetherBonus(p.ID, assignedOnDate) {
		score += s.weights.Sibling
	}

	if s.history.InBag(p.ID, job, position) {
		score += s.weights.Rotation
	}

	return score
}

// gapWeeks measures whole weeks between two dates. Service dates are
// Sundays, so the division is exact in practice.
func gapWeeks(from, to time.Time) float64 {
	days := normalizeDate(to).Sub(normalizeDate(from)).Hours() / 24
	return days / 7
}

// recencyTerm rewards people whose last service lies further back: zero for
// someone who served last week, saturating at one after a quarter year.
func recencyTerm(gap float64) float64 {
	return clamp((gap-1)/12, 0, 1)
}

// frequencyTerm peaks at the preferred gap and decays linearly to zero at
// twice the target, in both directions.
func frequencyTerm(targetGap int, gap float64) float64 {
	if targetGap <= 0 {
		return 0
	}
	t := float64(targetGap)
	return clamp(1-abs(gap-t)/t, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package scheduler

import (
	"sort"
	"time"
)

// AvailabilityIndex answers "may person P serve job J on date D?" for the
// roster-level hard rules: active flag, qualification, per-job exclusion and
// unavailability windows. It is read-only after construction and safe for
// concurrent use.
type AvailabilityIndex struct {
	people    map[string]*Person
	qualified map[string]map[string]bool
	excluded  map[string]map[string]bool
	blocks    map[string]*intervalNode
}

// NewAvailabilityIndex builds the index. Recurring unavailability records are
// treated as (month, day) windows and rolled onto every year in years; a
// window whose start (month, day) follows its end wraps through January 1.
func NewAvailabilityIndex(people []Person, unavailability []Unavailability, years []int) *AvailabilityIndex {
	ix := &AvailabilityIndex{
		people:    make(map[string]*Person, len(people)),
		qualified: make(map[string]map[string]bool, len(people)),
		excluded:  make(map[string]map[string]bool, len(people)),
		blocks:    make(map[string]*intervalNode),
	}

	for i := range people {
		p := &people[i]
		ix.people[p.ID] = p
		jobs := make(map[string]bool, len(p.QualifiedJobIDs))
		for _, jobID := range p.QualifiedJobIDs {
			jobs[jobID] = true
		}
		ix.qualified[p.ID] = jobs
		if len(p.ExcludedJobIDs) > 0 {
			ex := make(map[string]bool, len(p.ExcludedJobIDs))
			for _, jobID := range p.ExcludedJobIDs {
				ex[jobID] = true
			}
			ix.excluded[p.ID] = ex
		}
	}

	perPerson := make(map[string][]dateInterval)
	for _, u := range unavailability {
		for _, iv := range expandUnavailability(u, years) {
			perPerson[u.PersonID] = append(perPerson[u.PersonID], iv)
		}
	}
	for personID, intervals := range perPerson {
		ix.blocks[personID] = buildIntervalTree(intervals)
	}

	return ix
}

// Eligibility evaluates the hard rules in their fixed order and returns the
// first failure, or ReasonNone when the person may serve.
func (ix *AvailabilityIndex) Eligibility(personID string, job *Job, date time.Time) Reason {
	p, ok := ix.people[personID]
	if !ok {
		return ReasonUnknownPerson
	}
	if !p.Active {
		return ReasonInactive
	}
	if !ix.qualified[personID][job.ID] {
		return ReasonNotQualified
	}
	if ix.excluded[personID][job.ID] {
		return ReasonExcludedFromJob
	}
	if ix.IsBlocked(personID, date) {
		return ReasonUnavailable
	}
	return ReasonNone
}

// IsQualified reports whether the person holds the qualification for the job.
func (ix *AvailabilityIndex) IsQualified(personID, jobID string) bool {
	return ix.qualified[personID][jobID]
}

// IsExcluded reports whether the person carries a per-job exclusion flag.
func (ix *AvailabilityIndex) IsExcluded(personID, jobID string) bool {
	return ix.excluded[personID][jobID]
}

// IsBlocked reports whether any unavailability window covers the date.
func (ix *AvailabilityIndex) IsBlocked(personID string, date time.Time) bool {
	root := ix.blocks[personID]
	if root == nil {
		return false
	}
	return root.covers(normalizeDate(date))
}

// dateInterval is an inclusive [start, end] range of days.
type dateInterval struct {
	start time.Time
	end   time.Time
}

func (iv dateInterval) contains(d time.Time) bool {
	return !d.Before(iv.start) && !d.After(iv.end)
}

func expandUnavailability(u Unavailability, years []int) []dateInterval {
	start := normalizeDate(u.Start)
	end := normalizeDate(u.End)
	if !u.Recurring {
		if end.Before(start) {
			return nil
		}
		return []dateInterval{{start: start, end: end}}
	}

	var out []dateInterval
	sm, sd := start.Month(), start.Day()
	em, ed := end.Month(), end.Day()
	wraps := sm > em || (sm == em && sd > ed)
	for _, year := range years {
		if !wraps {
			out = append(out, dateInterval{
				start: time.Date(year, sm, sd, 0, 0, 0, 0, time.UTC),
				end:   time.Date(year, em, ed, 0, 0, 0, 0, time.UTC),
			})
			continue
		}
		out = append(out,
			dateInterval{
				start: time.Date(year, sm, sd, 0, 0, 0, 0, time.UTC),
				end:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
			},
			dateInterval{
				start: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
				end:   time.Date(year, em, ed, 0, 0, 0, 0, time.UTC),
			},
		)
	}
	return out
}

// intervalNode is a centered interval tree. Intervals overlapping the center
// live on the node, kept twice: sorted by start for queries left of center
// and by descending end for queries right of it.
type intervalNode struct {
	center  time.Time
	left    *intervalNode
	right   *intervalNode
	byStart []dateInterval
	byEnd   []dateInterval
}

func buildIntervalTree(intervals []dateInterval) *intervalNode {
	if len(intervals) == 0 {
		return nil
	}

	endpoints := make([]time.Time, 0, len(intervals)*2)
	for _, iv := range intervals {
		endpoints = append(endpoints, iv.start, iv.end)
	}
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].Before(endpoints[j]) })
	center := endpoints[len(endpoints)/2]

	node := &intervalNode{center: center}
	var leftSet, rightSet []dateInterval
	for _, iv := range intervals {
		switch {
		case iv.end.Before(center):
			leftSet = append(leftSet, iv)
		case iv.start.After(center):
			rightSet = append(rightSet, iv)
		default:
			// Overlaps the center: stays on this node, which also bounds
			// the recursion depth.
			node.byStart = append(node.byStart, iv)
		}
	}

	node.byEnd = make([]dateInterval, len(node.byStart))
	copy(node.byEnd, node.byStart)
	sort.Slice(node.byStart, func(i, j int) bool { return node.byStart[i].start.Before(node.byStart[j].start) })
	sort.Slice(node.byEnd, func(i, j int) bool { return node.byEnd[i].end.After(node.byEnd[j].end) })

	node.left = buildIntervalTree(leftSet)
	node.right = buildIntervalTree(rightSet)
	return node
}

func (n *intervalNode) covers(d time.Time) bool {
	if n == nil {
		return false
	}
	switch {
	case d.Before(n.center):
		// Intervals on this node all reach the center, so any with
		// start <= d covers d.
		for _, iv := range n.byStart {
			if iv.start.After(d) {
				break
			}
			return true
		}
		return n.left.covers(d)
	case d.After(n.center):
		for _, iv := range n.byEnd {
			if iv.end.Before(d) {
				break
			}
			return true
		}
		return n.right.covers(d)
	default:
		return len(n.byStart) > 0
	}
}

package scheduler

import (
	"sort"
	"time"
)

// HistoryIndex answers the history-derived questions for one generation run.
// It is built once from the append-only log and then extended with Record as
// the builder commits slots, so later decisions in the same run see earlier
// ones.
type HistoryIndex struct {
	targetYear int
	byPerson   map[string]*personHistory
}

type jobYear struct {
	jobID string
	year  int
}

type yearMonth struct {
	year  int
	month time.Month
}

type personHistory struct {
	countByYear    map[int]int
	countByJobYear map[jobYear]int
	last           time.Time
	hasLast        bool
	weeks          map[int]bool
	byJob          map[string][]HistoryEntry // sorted by date ascending
	monthsByJob    map[string]map[yearMonth]bool
}

// NewHistoryIndex builds the index for a target year. Entries may arrive in
// any order.
func NewHistoryIndex(entries []HistoryEntry, targetYear int) *HistoryIndex {
	ix := &HistoryIndex{
		targetYear: targetYear,
		byPerson:   make(map[string]*personHistory),
	}
	sorted := make([]HistoryEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		if sorted[i].PersonID != sorted[j].PersonID {
			return sorted[i].PersonID < sorted[j].PersonID
		}
		if sorted[i].JobID != sorted[j].JobID {
			return sorted[i].JobID < sorted[j].JobID
		}
		return sorted[i].Position < sorted[j].Position
	})
	for _, e := range sorted {
		ix.Record(e)
	}
	return ix
}

// Record registers one assignment. The builder calls this after every commit
// so the working history stays current within the run.
func (ix *HistoryIndex) Record(e HistoryEntry) {
	e.Date = normalizeDate(e.Date)
	ph := ix.byPerson[e.PersonID]
	if ph == nil {
		ph = &personHistory{
			countByYear:    make(map[int]int),
			countByJobYear: make(map[jobYear]int),
			weeks:          make(map[int]bool),
			byJob:          make(map[string][]HistoryEntry),
			monthsByJob:    make(map[string]map[yearMonth]bool),
		}
		ix.byPerson[e.PersonID] = ph
	}

	year := e.Date.Year()
	ph.countByYear[year]++
	ph.countByJobYear[jobYear{jobID: e.JobID, year: year}]++
	if !ph.hasLast || e.Date.After(ph.last) {
		ph.last = e.Date
		ph.hasLast = true
	}
	ph.weeks[isoWeekKey(e.Date)] = true

	entries := ph.byJob[e.JobID]
	at := sort.Search(len(entries), func(i int) bool { return entries[i].Date.After(e.Date) })
	entries = append(entries, HistoryEntry{})
	copy(entries[at+1:], entries[at:])
	entries[at] = e
	ph.byJob[e.JobID] = entries

	months := ph.monthsByJob[e.JobID]
	if months == nil {
		months = make(map[yearMonth]bool)
		ph.monthsByJob[e.JobID] = months
	}
	months[yearMonth{year: year, month: e.Date.Month()}] = true
}

// CountThisYear returns the person's assignments in the target year.
func (ix *HistoryIndex) CountThisYear(personID string) int {
	if ph := ix.byPerson[personID]; ph != nil {
		return ph.countByYear[ix.targetYear]
	}
	return 0
}

// CountByJobThisYear returns the person's assignments for one job in the
// target year.
func (ix *HistoryIndex) CountByJobThisYear(personID, jobID string) int {
	if ph := ix.byPerson[personID]; ph != nil {
		return ph.countByJobYear[jobYear{jobID: jobID, year: ix.targetYear}]
	}
	return 0
}

// LastServiceDate returns the person's most recent assignment date.
func (ix *HistoryIndex) LastServiceDate(personID string) (time.Time, bool) {
	if ph := ix.byPerson[personID]; ph != nil && ph.hasLast {
		return ph.last, true
	}
	return time.Time{}, false
}

// ConsecutiveWeeksEndingAt returns the length of the unbroken run of weekly
// assignments (any job) ending on the week strictly before date.
func (ix *HistoryIndex) ConsecutiveWeeksEndingAt(personID string, date time.Time) int {
	ph := ix.byPerson[personID]
	if ph == nil {
		return 0
	}
	count := 0
	week := normalizeDate(date).AddDate(0, 0, -7)
	for ph.weeks[isoWeekKey(week)] {
		count++
		week = week.AddDate(0, 0, -7)
	}
	return count
}

// consecutiveRunWith returns how long the weekly run containing date would
// be if the person served on it: the weeks already served before and after
// plus the date itself.
func (ix *HistoryIndex) consecutiveRunWith(personID string, date time.Time) int {
	ph := ix.byPerson[personID]
	if ph == nil {
		return 1
	}
	run := 1
	week := normalizeDate(date).AddDate(0, 0, -7)
	for ph.weeks[isoWeekKey(week)] {
		run++
		week = week.AddDate(0, 0, -7)
	}
	week = normalizeDate(date).AddDate(0, 0, 7)
	for ph.weeks[isoWeekKey(week)] {
		run++
		week = week.AddDate(0, 0, 7)
	}
	return run
}

// ServedInMonth reports whether the person served the job in (year, month).
func (ix *HistoryIndex) ServedInMonth(personID, jobID string, year int, month time.Month) bool {
	ph := ix.byPerson[personID]
	if ph == nil {
		return false
	}
	return ph.monthsByJob[jobID][yearMonth{year: year, month: month}]
}

// ServedInPriorMonth reports whether the person served the job in the
// calendar month immediately before (year, month), wrapping through January.
func (ix *HistoryIndex) ServedInPriorMonth(personID, jobID string, year int, month time.Month) bool {
	py, pm := priorMonth(year, month)
	return ix.ServedInMonth(personID, jobID, py, pm)
}

// ServedInFollowingMonth is the forward twin of ServedInPriorMonth, used by
// edit validation when later months already carry history.
func (ix *HistoryIndex) ServedInFollowingMonth(personID, jobID string, year int, month time.Month) bool {
	ny, nm := followingMonth(year, month)
	return ix.ServedInMonth(personID, jobID, ny, nm)
}

// RotationBag returns the positions of the job the person has not yet
// performed in their current rotation cycle, ascending. A cycle completes
// when every position has been covered; the bag then refills.
func (ix *HistoryIndex) RotationBag(personID string, job *Job) []int {
	full := make([]int, 0, len(job.Positions))
	valid := make(map[int]bool, len(job.Positions))
	for _, pos := range job.Positions {
		full = append(full, pos.Number)
		valid[pos.Number] = true
	}
	sort.Ints(full)

	bag := make(map[int]bool, len(full))
	for _, n := range full {
		bag[n] = true
	}

	if ph := ix.byPerson[personID]; ph != nil {
		for _, e := range ph.byJob[job.ID] {
			if !valid[e.Position] {
				continue
			}
			delete(bag, e.Position)
			if len(bag) == 0 {
				for _, n := range full {
					bag[n] = true
				}
			}
		}
	}

	out := make([]int, 0, len(bag))
	for n := range bag {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// InBag reports whether the position is still pending in the person's
// current rotation cycle for the job.
func (ix *HistoryIndex) InBag(personID string, job *Job, position int) bool {
	for _, n := range ix.RotationBag(personID, job) {
		if n == position {
			return true
		}
	}
	return false
}

func isoWeekKey(date time.Time) int {
	y, w := date.ISOWeek()
	return y*100 + w
}

func priorMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

func followingMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

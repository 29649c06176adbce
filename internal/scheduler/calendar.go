package scheduler

import "time"

// SundaysIn returns every Sunday of the given month in ascending order,
// normalized to UTC midnight.
func SundaysIn(year int, month time.Month) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (7 - int(first.Weekday())) % 7
	day := first.AddDate(0, 0, offset)

	var sundays []time.Time
	for day.Month() == month {
		sundays = append(sundays, day)
		day = day.AddDate(0, 0, 7)
	}
	return sundays
}

package scheduler

import (
	"testing"
	"time"
)

func TestSundaysIn(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		want  []int
	}{
		{
			name:  "four sundays",
			year:  2026,
			month: time.January,
			want:  []int{4, 11, 18, 25},
		},
		{
			name:  "five sundays starting on the first",
			year:  2026,
			month: time.March,
			want:  []int{1, 8, 15, 22, 29},
		},
		{
			name:  "february",
			year:  2026,
			month: time.February,
			want:  []int{1, 8, 15, 22},
		},
		{
			name:  "leap year february",
			year:  2024,
			month: time.February,
			want:  []int{4, 11, 18, 25},
		},
		{
			name:  "december",
			year:  2026,
			month: time.December,
			want:  []int{6, 13, 20, 27},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SundaysIn(tt.year, tt.month)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sundays, want %d", len(got), len(tt.want))
			}
			for i, day := range tt.want {
				d := got[i]
				if d.Year() != tt.year || d.Month() != tt.month || d.Day() != day {
					t.Fatalf("sunday %d = %s, want day %d", i, d.Format("2006-01-02"), day)
				}
				if d.Weekday() != time.Sunday {
					t.Fatalf("%s is a %s, not a Sunday", d.Format("2006-01-02"), d.Weekday())
				}
			}
		})
	}
}

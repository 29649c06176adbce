package models

import (
	"strings"
	"time"
)

// PreferredFrequency expresses how often a volunteer wants to serve.
type PreferredFrequency string

const (
	FrequencyWeekly    PreferredFrequency = "weekly"
	FrequencyBimonthly PreferredFrequency = "bimonthly"
	FrequencyMonthly   PreferredFrequency = "monthly"
)

// TargetGapWeeks returns the ideal number of weeks between two services
// for this frequency.
func (f PreferredFrequency) TargetGapWeeks() int {
	switch f {
	case FrequencyWeekly:
		return 1
	case FrequencyBimonthly:
		return 2
	default:
		return 4
	}
}

// Valid reports whether the frequency is one of the known values.
func (f PreferredFrequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBimonthly, FrequencyMonthly:
		return true
	}
	return false
}

// Person represents a volunteer on the roster.
type Person struct {
	ID                  string             `db:"id" json:"id"`
	FirstName           string             `db:"first_name" json:"first_name"`
	LastName            string             `db:"last_name" json:"last_name"`
	Email               *string            `db:"email" json:"email,omitempty"`
	Phone               *string            `db:"phone" json:"phone,omitempty"`
	Active              bool               `db:"active" json:"active"`
	PreferredFrequency  PreferredFrequency `db:"preferred_frequency" json:"preferred_frequency"`
	MaxConsecutiveWeeks int                `db:"max_consecutive_weeks" json:"max_consecutive_weeks"`
	PreferenceLevel     int                `db:"preference_level" json:"preference_level"`
	ExcludeMonaguillos  bool               `db:"exclude_monaguillos" json:"exclude_monaguillos"`
	ExcludeLectores     bool               `db:"exclude_lectores" json:"exclude_lectores"`
	Notes               *string            `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`

	// QualifiedJobIDs is populated from person_jobs on reads; it is not a
	// column of the people table.
	QualifiedJobIDs []string `db:"-" json:"qualified_job_ids,omitempty"`
}

// FullName joins the name parts for display.
func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// PersonJob links a person to a job they are qualified for.
type PersonJob struct {
	PersonID string `db:"person_id" json:"person_id"`
	JobID    string `db:"job_id" json:"job_id"`
}

// PersonFilter captures filtering options for listing people.
type PersonFilter struct {
	Search    string
	Active    *bool
	JobID     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

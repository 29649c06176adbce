package models

import "time"

// Well-known job names. The exclusion flags on Person refer to these.
const (
	JobNameMonaguillos = "monaguillos"
	JobNameLectores    = "lectores"
)

// Job is a role category filled by PeopleRequired persons per service date.
type Job struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Description    *string   `db:"description" json:"description,omitempty"`
	PeopleRequired int       `db:"people_required" json:"people_required"`
	Color          *string   `db:"color" json:"color,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	// Positions is populated from job_positions on reads, ordered by
	// position_number.
	Positions []JobPosition `db:"-" json:"positions,omitempty"`
}

// JobPosition is a numbered sub-role within a job. Position numbers are
// contiguous from 1 and unique within the job.
type JobPosition struct {
	ID             string `db:"id" json:"id"`
	JobID          string `db:"job_id" json:"job_id"`
	PositionNumber int    `db:"position_number" json:"position_number"`
	Name           string `db:"name" json:"name"`
}

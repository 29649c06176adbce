package models

import "time"

// ScheduleStatus tracks the lifecycle of a monthly schedule.
type ScheduleStatus string

const (
	ScheduleDraft     ScheduleStatus = "DRAFT"
	SchedulePublished ScheduleStatus = "PUBLISHED"
	ScheduleArchived  ScheduleStatus = "ARCHIVED"
)

// Schedule is one month of service dates. (Year, Month) is unique.
type Schedule struct {
	ID        string         `db:"id" json:"id"`
	Year      int            `db:"year" json:"year"`
	Month     int            `db:"month" json:"month"`
	Name      string         `db:"name" json:"name"`
	Status    ScheduleStatus `db:"status" json:"status"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// ServiceDate is one Sunday belonging to a schedule.
type ServiceDate struct {
	ID         string    `db:"id" json:"id"`
	ScheduleID string    `db:"schedule_id" json:"schedule_id"`
	Date       time.Time `db:"service_date" json:"service_date"`
}

// Assignment is one slot of a service date. A nil PersonID marks an empty
// slot kept as a placeholder. (ServiceDateID, JobID, Position) is unique.
type Assignment struct {
	ID             string    `db:"id" json:"id"`
	ServiceDateID  string    `db:"service_date_id" json:"service_date_id"`
	JobID          string    `db:"job_id" json:"job_id"`
	Position       int       `db:"position" json:"position"`
	PersonID       *string   `db:"person_id" json:"person_id,omitempty"`
	PositionName   *string   `db:"position_name" json:"position_name,omitempty"`
	ManualOverride bool      `db:"manual_override" json:"manual_override"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentDetail joins an assignment with display fields for reads.
type AssignmentDetail struct {
	Assignment
	ScheduleID  string    `db:"schedule_id" json:"schedule_id"`
	ServiceDate time.Time `db:"service_date" json:"service_date"`
	JobName     string    `db:"job_name" json:"job_name"`
	PersonName  *string   `db:"person_name" json:"person_name,omitempty"`
}

// AssignmentHistory is the append-only log written on publish and read by
// later generation runs.
type AssignmentHistory struct {
	ID          string    `db:"id" json:"id"`
	PersonID    string    `db:"person_id" json:"person_id"`
	JobID       string    `db:"job_id" json:"job_id"`
	ServiceDate time.Time `db:"service_date" json:"service_date"`
	Year        int       `db:"year" json:"year"`
	WeekNumber  int       `db:"week_number" json:"week_number"`
	Position    int       `db:"position" json:"position"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ScheduleFilter captures list filters for schedules.
type ScheduleFilter struct {
	Year   *int
	Status *ScheduleStatus
}

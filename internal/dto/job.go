package dto

// CreateJobRequest defines a job and its numbered positions. Position names
// are assigned numbers 1..n in order; when omitted, names default to
// "<job name> <n>".
type CreateJobRequest struct {
	Name           string   `json:"name" validate:"required"`
	Description    *string  `json:"description"`
	PeopleRequired int      `json:"peopleRequired" validate:"required,min=1"`
	Color          *string  `json:"color"`
	PositionNames  []string `json:"positionNames" validate:"omitempty,dive,required"`
}

// UpdateJobRequest rewrites a job's mutable fields. Changing peopleRequired
// only affects schedules generated afterwards.
type UpdateJobRequest struct {
	Name           *string  `json:"name"`
	Description    *string  `json:"description"`
	PeopleRequired *int     `json:"peopleRequired" validate:"omitempty,min=1"`
	Color          *string  `json:"color"`
	Active         *bool    `json:"active"`
	PositionNames  []string `json:"positionNames" validate:"omitempty,dive,required"`
}

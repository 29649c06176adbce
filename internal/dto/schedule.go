package dto

// GenerateScheduleRequest asks for a proposal covering the Sundays of one
// month. Name defaults to "<Month> <Year>" when empty.
type GenerateScheduleRequest struct {
	Year  int    `json:"year" validate:"required,min=2020,max=2100"`
	Month int    `json:"month" validate:"required,min=1,max=12"`
	Name  string `json:"name"`
}

// ScheduleSlotView is one slot of a proposal or stored schedule.
type ScheduleSlotView struct {
	AssignmentID   string  `json:"assignmentId,omitempty"`
	ServiceDate    string  `json:"serviceDate"`
	JobID          string  `json:"jobId"`
	JobName        string  `json:"jobName"`
	Position       int     `json:"position"`
	PositionName   string  `json:"positionName"`
	PersonID       *string `json:"personId,omitempty"`
	PersonName     *string `json:"personName,omitempty"`
	ManualOverride bool    `json:"manualOverride"`
}

// ScheduleConflictView reports a slot the generator could not fill.
type ScheduleConflictView struct {
	ServiceDate  string `json:"serviceDate"`
	JobID        string `json:"jobId"`
	JobName      string `json:"jobName"`
	Position     int    `json:"position"`
	PositionName string `json:"positionName"`
	Code         string `json:"code"`
	Reason       string `json:"reason"`
	Message      string `json:"message"`
}

// FairnessScoreView ranks one person by assignment load.
type FairnessScoreView struct {
	PersonID        string  `json:"personId"`
	PersonName      string  `json:"personName"`
	AssignmentCount int     `json:"assignmentCount"`
	LastServiceDate *string `json:"lastServiceDate,omitempty"`
	Score           float64 `json:"fairnessScore"`
}

// GenerateScheduleResponse returns the built proposal. The proposal id is
// valid until saved or until the proposal TTL expires.
type GenerateScheduleResponse struct {
	ProposalID     string                 `json:"proposalId"`
	Year           int                    `json:"year"`
	Month          int                    `json:"month"`
	Name           string                 `json:"name"`
	Dates          []string               `json:"dates"`
	Slots          []ScheduleSlotView     `json:"slots"`
	Conflicts      []ScheduleConflictView `json:"conflicts"`
	FairnessScores []FairnessScoreView    `json:"fairnessScores"`
}

// SaveScheduleRequest persists a proposal as a draft schedule.
type SaveScheduleRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
}

// EmptySlotView names one unfilled slot blocking publication.
type EmptySlotView struct {
	ServiceDate  string `json:"serviceDate"`
	JobName      string `json:"jobName"`
	PositionName string `json:"positionName"`
}

// CompletenessView summarises fill state for the publish gate.
type CompletenessView struct {
	IsComplete  bool            `json:"isComplete"`
	TotalSlots  int             `json:"totalSlots"`
	FilledSlots int             `json:"filledSlots"`
	EmptySlots  []EmptySlotView `json:"emptySlots"`
}

// ScheduleDetailResponse is a stored schedule with its slots.
type ScheduleDetailResponse struct {
	ID           string             `json:"id"`
	Year         int                `json:"year"`
	Month        int                `json:"month"`
	Name         string             `json:"name"`
	Status       string             `json:"status"`
	Dates        []string           `json:"dates"`
	Slots        []ScheduleSlotView `json:"slots"`
	Completeness CompletenessView   `json:"completeness"`
}

// ScheduleQuery filters the schedule list.
type ScheduleQuery struct {
	Year   *int   `form:"year"`
	Status string `form:"status"`
}

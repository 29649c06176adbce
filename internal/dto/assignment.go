package dto

// ReplaceAssignmentRequest puts a person into a slot, bumping whoever held
// it. The placement passes the full rule check before anything changes.
type ReplaceAssignmentRequest struct {
	PersonID string `json:"personId" validate:"required"`
}

// SwapAssignmentsRequest exchanges the occupants of two filled slots.
type SwapAssignmentsRequest struct {
	AssignmentIDA string `json:"assignmentIdA" validate:"required"`
	AssignmentIDB string `json:"assignmentIdB" validate:"required"`
}

// MoveAssignmentRequest relocates an occupant to an empty slot.
type MoveAssignmentRequest struct {
	FromAssignmentID string `json:"fromAssignmentId" validate:"required"`
	ToAssignmentID   string `json:"toAssignmentId" validate:"required"`
}

// MyAssignmentView is one upcoming slot shown to a member account.
type MyAssignmentView struct {
	AssignmentID string `json:"assignmentId"`
	ServiceDate  string `json:"serviceDate"`
	JobName      string `json:"jobName"`
	Position     int    `json:"position"`
	PositionName string `json:"positionName"`
}

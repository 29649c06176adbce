package dto

// FairnessReportResponse ranks the active roster by load for a year.
type FairnessReportResponse struct {
	Year   int                 `json:"year"`
	Scores []FairnessScoreView `json:"scores"`
}

// PersonHistoryEntryView is one past service of a person.
type PersonHistoryEntryView struct {
	ServiceDate string `json:"serviceDate"`
	JobID       string `json:"jobId"`
	JobName     string `json:"jobName"`
	Position    int    `json:"position"`
}

// PersonHistoryResponse lists a person's recent services, newest first.
type PersonHistoryResponse struct {
	PersonID   string                   `json:"personId"`
	PersonName string                   `json:"personName"`
	Entries    []PersonHistoryEntryView `json:"entries"`
}

// JobCoverageView counts filled and empty slots for one job in a month.
type JobCoverageView struct {
	JobID       string `json:"jobId"`
	JobName     string `json:"jobName"`
	TotalSlots  int    `json:"totalSlots"`
	FilledSlots int    `json:"filledSlots"`
}

// MonthSummaryResponse aggregates a stored schedule for coordinators.
type MonthSummaryResponse struct {
	Year            int               `json:"year"`
	Month           int               `json:"month"`
	Status          string            `json:"status"`
	Dates           []string          `json:"dates"`
	Coverage        []JobCoverageView `json:"coverage"`
	ManualOverrides int               `json:"manualOverrides"`
	DistinctPeople  int               `json:"distinctPeople"`
}

package scheduler

import (
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
)

// Reason identifies why a candidate failed a hard rule. The empty reason
// means the rule passed.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonInactive             Reason = "PERSON_INACTIVE"
	ReasonNotQualified         Reason = "NOT_QUALIFIED"
	ReasonExcludedFromJob      Reason = "EXCLUDED_FROM_JOB"
	ReasonUnavailable          Reason = "UNAVAILABLE"
	ReasonConsecutiveWeeks     Reason = "EXCEEDS_CONSECUTIVE_WEEKS"
	ReasonAlreadyAssigned      Reason = "ALREADY_ASSIGNED_THIS_MONTH"
	ReasonConsecutiveMonth     Reason = "CONSECUTIVE_MONTH_FORBIDDEN"
	ReasonDayExclusivity       Reason = "DAY_EXCLUSIVITY_VIOLATION"
	ReasonSiblingSeparate      Reason = "SIBLING_SEPARATE_VIOLATION"
	ReasonDuplicateOnSchedule  Reason = "DUPLICATE_PERSON_ON_SCHEDULE"
	ReasonUnknownPerson        Reason = "UNKNOWN_PERSON"
)

// reasonMessages are the English fallbacks; clients translate by code.
var reasonMessages = map[Reason]string{
	ReasonInactive:            "person is inactive",
	ReasonNotQualified:        "person is not qualified for this job",
	ReasonExcludedFromJob:     "person is excluded from this job",
	ReasonUnavailable:         "person is unavailable on this date",
	ReasonConsecutiveWeeks:    "person would exceed their consecutive week limit",
	ReasonAlreadyAssigned:     "person already serves this job this month",
	ReasonConsecutiveMonth:    "person served this job in an adjacent month",
	ReasonDayExclusivity:      "person already serves an exclusive job on this date",
	ReasonSiblingSeparate:     "a sibling marked separate already serves on this date",
	ReasonDuplicateOnSchedule: "person already fills a slot on this date",
	ReasonUnknownPerson:       "person not found in the roster snapshot",
}

// Message returns the English fallback text for a reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// AppError maps a reason onto the shared error taxonomy so callers surface
// one consistent code set.
func (r Reason) AppError() *appErrors.Error {
	switch r {
	case ReasonNone:
		return nil
	case ReasonInactive:
		return appErrors.ErrPersonInactive
	case ReasonNotQualified:
		return appErrors.ErrNotQualified
	case ReasonExcludedFromJob:
		return appErrors.ErrExcludedFromJob
	case ReasonUnavailable:
		return appErrors.ErrPersonUnavailable
	case ReasonConsecutiveWeeks:
		return appErrors.ErrExceedsConsecutiveWeeks
	case ReasonAlreadyAssigned:
		return appErrors.ErrAlreadyAssignedThisMonth
	case ReasonConsecutiveMonth:
		return appErrors.ErrConsecutiveMonth
	case ReasonDayExclusivity:
		return appErrors.ErrDayExclusivity
	case ReasonSiblingSeparate:
		return appErrors.ErrSiblingSeparate
	case ReasonDuplicateOnSchedule:
		return appErrors.ErrDuplicatePerson
	default:
		return appErrors.Clone(appErrors.ErrValidation, r.Message())
	}
}

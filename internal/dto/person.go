package dto

// CreatePersonRequest adds a volunteer to the roster.
type CreatePersonRequest struct {
	FirstName           string   `json:"firstName" validate:"required"`
	LastName            string   `json:"lastName" validate:"required"`
	Email               *string  `json:"email" validate:"omitempty,email"`
	Phone               *string  `json:"phone"`
	PreferredFrequency  string   `json:"preferredFrequency" validate:"required"`
	MaxConsecutiveWeeks int      `json:"maxConsecutiveWeeks" validate:"required,min=1"`
	PreferenceLevel     int      `json:"preferenceLevel" validate:"required,min=1,max=10"`
	ExcludeMonaguillos  bool     `json:"excludeMonaguillos"`
	ExcludeLectores     bool     `json:"excludeLectores"`
	QualifiedJobIDs     []string `json:"qualifiedJobIds" validate:"omitempty,dive,required"`
	Notes               *string  `json:"notes"`
}

// UpdatePersonRequest rewrites a volunteer's mutable fields. Nil pointers
// leave the stored value untouched.
type UpdatePersonRequest struct {
	FirstName           *string  `json:"firstName"`
	LastName            *string  `json:"lastName"`
	Email               *string  `json:"email" validate:"omitempty,email"`
	Phone               *string  `json:"phone"`
	Active              *bool    `json:"active"`
	PreferredFrequency  *string  `json:"preferredFrequency"`
	MaxConsecutiveWeeks *int     `json:"maxConsecutiveWeeks" validate:"omitempty,min=1"`
	PreferenceLevel     *int     `json:"preferenceLevel" validate:"omitempty,min=1,max=10"`
	ExcludeMonaguillos  *bool    `json:"excludeMonaguillos"`
	ExcludeLectores     *bool    `json:"excludeLectores"`
	QualifiedJobIDs     []string `json:"qualifiedJobIds" validate:"omitempty,dive,required"`
	Notes               *string  `json:"notes"`
}

// AddUnavailabilityRequest blocks a date window for a person.
type AddUnavailabilityRequest struct {
	StartDate string  `json:"startDate" validate:"required"`
	EndDate   string  `json:"endDate" validate:"required"`
	Reason    *string `json:"reason"`
	Recurring bool    `json:"recurring"`
}

package dto

// CreateUserRequest registers an application account. Member accounts may
// link to a roster person for self-service reads.
type CreateUserRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	FullName string  `json:"fullName" validate:"required"`
	Role     string  `json:"role" validate:"required"`
	PersonID *string `json:"personId"`
}

// UpdateUserRequest rewrites account fields. Nil fields keep stored values.
type UpdateUserRequest struct {
	FullName *string `json:"fullName"`
	Role     *string `json:"role"`
	PersonID *string `json:"personId"`
	Active   *bool   `json:"active"`
}

package dto

// CreateSiblingGroupRequest registers a related set of volunteers.
type CreateSiblingGroupRequest struct {
	Name        string   `json:"name" validate:"required"`
	PairingRule string   `json:"pairingRule" validate:"required"`
	MemberIDs   []string `json:"memberIds" validate:"required,min=2,dive,required"`
}

// UpdateSiblingGroupRequest rewrites a group. Nil fields keep stored values.
type UpdateSiblingGroupRequest struct {
	Name        *string  `json:"name"`
	PairingRule *string  `json:"pairingRule"`
	MemberIDs   []string `json:"memberIds" validate:"omitempty,min=2,dive,required"`
}

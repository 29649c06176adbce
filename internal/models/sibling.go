package models

import "time"

// PairingRule tells the generator how siblings in a group relate.
type PairingRule string

const (
	// PairTogether is a soft preference: scheduling siblings on the same
	// date is rewarded, never required.
	PairTogether PairingRule = "TOGETHER"
	// PairSeparate is a hard rule: two members never share a service date.
	PairSeparate PairingRule = "SEPARATE"
)

// Valid reports whether the rule is a known value.
func (r PairingRule) Valid() bool {
	return r == PairTogether || r == PairSeparate
}

// SiblingGroup names a set of related volunteers. A person may belong to
// several groups.
type SiblingGroup struct {
	ID          string      `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	PairingRule PairingRule `db:"pairing_rule" json:"pairing_rule"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`

	// MemberIDs is populated from sibling_group_members on reads.
	MemberIDs []string `db:"-" json:"member_ids,omitempty"`
}

// SiblingGroupMember links a person to a group.
type SiblingGroupMember struct {
	GroupID  string `db:"group_id" json:"group_id"`
	PersonID string `db:"person_id" json:"person_id"`
}

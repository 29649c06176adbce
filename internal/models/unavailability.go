package models

import "time"

// Unavailability blocks a person for a date range. Recurring records repeat
// every year: the (month, day) window is rolled onto the year being asked
// about, wrapping through January 1 when the window crosses New Year.
type Unavailability struct {
	ID        string    `db:"id" json:"id"`
	PersonID  string    `db:"person_id" json:"person_id"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	Recurring bool      `db:"recurring" json:"recurring"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

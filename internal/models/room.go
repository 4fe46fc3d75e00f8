package models

import "time"

// Room is a physical classroom, keyed by its number.
type Room struct {
	Number    int       `db:"number" json:"number"`
	Location  string    `db:"location" json:"location"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

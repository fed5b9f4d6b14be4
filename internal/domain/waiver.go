package domain

import "time"

// WaiverVersion is the schema version stamped on new waivers
const WaiverVersion = "1.0"

// Minor is a child covered by a guardian's waiver
type Minor struct {
	Name     string `json:"name"`
	DOB      string `json:"dob,omitempty"` // YYYY-MM-DD
	Guardian string `json:"guardian,omitempty"`
}

// AdultGuest is an additional adult covered by a waiver
type AdultGuest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	DOB   string `json:"dob,omitempty"`
}

// Waiver is a liability acknowledgment tied to a booking. One is
// created alongside the booking; staff may add more later through the
// admin surface.
type Waiver struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	DOB   string `json:"dob,omitempty"`

	Version    string       `json:"version"`
	Minors     []Minor      `json:"minors,omitempty"`
	Adults     []AdultGuest `json:"adults,omitempty"`
	IsVerified bool         `json:"is_verified"`

	BookingID int64 `json:"booking"`

	SignedAt time.Time `json:"signed_at,omitempty"`
}

package models

import "time"

// Attendance is a physical check-in record for one user in one event round.
// Uniqueness on (event, round, user) is enforced at the storage layer; the
// record is created once and only ever hard-deleted by an undo.
type Attendance struct {
	ID             int       `json:"id" db:"id"`
	EventID        int       `json:"event_id" db:"event_id"`
	RoundID        int       `json:"round_id" db:"round_id"`
	RoundName      string    `json:"round_name" db:"round_name"`
	RegistrationID int       `json:"registration_id" db:"registration_id"`
	UserID         int       `json:"user_id" db:"user_id"`
	ScannedBy      int       `json:"scanned_by" db:"scanned_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// TeamAttendanceStat is the per-team projection of a round's check-ins.
type TeamAttendanceStat struct {
	RegistrationID int    `json:"registration_id"`
	TeamName       string `json:"team_name"`
	PresentCount   int    `json:"present_count"`
	PresentUserIDs []int  `json:"present_user_ids"`
}

package models

import "time"

// ResultEntry is one ranked row of a round's outcome. Rank values are
// organizer-supplied and are not recomputed by the backend.
type ResultEntry struct {
	Rank           int    `json:"rank"`
	RegistrationID int    `json:"registration_id"`
	Score          string `json:"score,omitempty"`
	Won            bool   `json:"won"`
}

// Result is the per-(event, round) outcome record. It starts as a draft,
// invisible to the public and to the attendance gate, and only gates the next
// round once Published is true.
type Result struct {
	ID                  int           `json:"id" db:"id"`
	EventID             int           `json:"event_id" db:"event_id"`
	RoundID             int           `json:"round_id" db:"round_id"`
	RoundName           string        `json:"round_name" db:"round_name"`
	RoundSequenceNumber int           `json:"round_sequence_number" db:"round_sequence_number"`
	Entries             []ResultEntry `json:"results" db:"entries"`
	Qualified           []int         `json:"qualified_for_next_round" db:"qualified"`
	Published           bool          `json:"published" db:"published"`
	PublishedBy         *int          `json:"published_by,omitempty" db:"published_by"`
	PublishedAt         *time.Time    `json:"published_at,omitempty" db:"published_at"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
}

// IsQualified reports whether the registration appears in the next-round list.
func (r *Result) IsQualified(registrationID int) bool {
	for _, id := range r.Qualified {
		if id == registrationID {
			return true
		}
	}
	return false
}

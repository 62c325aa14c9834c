package models

import "time"

type ParticipationType string

const (
	ParticipationSolo  ParticipationType = "solo"
	ParticipationGroup ParticipationType = "group"
)

// Round is a named, sequenced stage of competition within an event.
// At most one round per event is active at any time.
type Round struct {
	ID               int       `json:"id" db:"id"`
	EventID          int       `json:"event_id" db:"event_id"`
	Name             string    `json:"name" db:"name"`
	SequenceNumber   int       `json:"sequence_number" db:"sequence_number"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	ResultsPublished bool      `json:"results_published" db:"results_published"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

type Event struct {
	ID                 int               `json:"id" db:"id"`
	Name               string            `json:"name" db:"name"`
	Slug               string            `json:"slug" db:"slug"`
	Description        *string           `json:"description,omitempty" db:"description"`
	Venue              *string           `json:"venue,omitempty" db:"venue"`
	Date               *time.Time        `json:"date,omitempty" db:"date"`
	ParticipationType  ParticipationType `json:"participation_type" db:"participation_type"`
	MinTeamSize        int               `json:"min_team_size" db:"min_team_size"`
	MaxTeamSize        int               `json:"max_team_size" db:"max_team_size"`
	MaxRegistrations   int               `json:"max_registrations" db:"max_registrations"` // 0 = unlimited
	IsRegistrationOpen bool              `json:"is_registration_open" db:"is_registration_open"`
	CreatedBy          int               `json:"created_by" db:"created_by"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`

	// Ordered by sequence_number; populated by the service when requested.
	Rounds []Round `json:"rounds,omitempty" db:"-"`
}

// FindRound returns the round with the given id, or nil.
func (e *Event) FindRound(roundID int) *Round {
	for i := range e.Rounds {
		if e.Rounds[i].ID == roundID {
			return &e.Rounds[i]
		}
	}
	return nil
}

// PreviousRound returns the round immediately before the given one in
// sequence order, or nil if the round is first or unknown.
func (e *Event) PreviousRound(roundID int) *Round {
	target := e.FindRound(roundID)
	if target == nil || target.SequenceNumber <= 1 {
		return nil
	}
	for i := range e.Rounds {
		if e.Rounds[i].SequenceNumber == target.SequenceNumber-1 {
			return &e.Rounds[i]
		}
	}
	return nil
}

// IsFinalRound reports whether the given round is last in the event's list.
func (e *Event) IsFinalRound(roundID int) bool {
	target := e.FindRound(roundID)
	if target == nil {
		return false
	}
	for i := range e.Rounds {
		if e.Rounds[i].SequenceNumber > target.SequenceNumber {
			return false
		}
	}
	return true
}

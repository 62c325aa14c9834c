package models

import "time"

type CertificateType string

const (
	CertificateParticipation CertificateType = "participation"
	CertificateExcellence    CertificateType = "excellence"
	CertificateCompletion    CertificateType = "completion"
	CertificateWinner        CertificateType = "winner"
)

// Certificate tracks how deep into an event one member of one registration
// got, plus winner status once final results are published. RoundReached only
// ever advances forward in round sequence.
type Certificate struct {
	ID                  int             `json:"id" db:"id"`
	UserID              int             `json:"user_id" db:"user_id"`
	EventID             int             `json:"event_id" db:"event_id"`
	RegistrationID      int             `json:"registration_id" db:"registration_id"`
	Type                CertificateType `json:"type" db:"type"`
	Rank                *int            `json:"rank,omitempty" db:"rank"`
	TeamName            *string         `json:"team_name,omitempty" db:"team_name"`
	RoundReached        string          `json:"round_reached" db:"round_reached"`
	RoundReachedSeq     int             `json:"round_reached_seq" db:"round_reached_seq"`
	IsWinner            bool            `json:"is_winner" db:"is_winner"`
	WinnerRank          *int            `json:"winner_rank,omitempty" db:"winner_rank"`
	CertificateID       string          `json:"certificate_id" db:"certificate_id"`
	IsGenerated         bool            `json:"is_generated" db:"is_generated"`
	FileKey             *string         `json:"-" db:"file_key"`
	FileURL             *string         `json:"file_url,omitempty" db:"-"`
	IssuedAt            *time.Time      `json:"issued_at,omitempty" db:"issued_at"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}

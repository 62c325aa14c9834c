package models

import "time"

type RegistrationStatus string

const (
	RegistrationActive       RegistrationStatus = "active"
	RegistrationCancelled    RegistrationStatus = "cancelled"
	RegistrationDisqualified RegistrationStatus = "disqualified"
)

type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberAccepted MemberStatus = "accepted"
	MemberRejected MemberStatus = "rejected"
)

// SubmissionData carries event-defined custom form fields. The core treats it
// as an opaque key-value document; validation against the event's form
// configuration happens outside this module.
type SubmissionData map[string]interface{}

// TeamMember is one invited participant on a group registration. User is nil
// until the invite is matched to an account (invites may be sent to an email
// before the invitee has signed up).
type TeamMember struct {
	ID             int            `json:"id" db:"id"`
	RegistrationID int            `json:"registration_id" db:"registration_id"`
	UserID         *int           `json:"user_id,omitempty" db:"user_id"`
	Email          string         `json:"email" db:"email"`
	Status         MemberStatus   `json:"status" db:"status"`
	InvitedAt      time.Time      `json:"invited_at" db:"invited_at"`
	SubmissionData SubmissionData `json:"submission_data,omitempty" db:"submission_data"`

	User *User `json:"user,omitempty" db:"-"`
}

// Registration is one participant's or one team's entry into one event.
type Registration struct {
	ID             int                `json:"id" db:"id"`
	EventID        int                `json:"event_id" db:"event_id"`
	RegisteredBy   int                `json:"registered_by" db:"registered_by"`
	TeamName       *string            `json:"team_name,omitempty" db:"team_name"`
	Status         RegistrationStatus `json:"status" db:"status"`
	SubmissionData SubmissionData     `json:"submission_data,omitempty" db:"submission_data"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`

	TeamMembers []TeamMember `json:"team_members" db:"-"`

	Event  *Event `json:"event,omitempty" db:"-"`
	Leader *User  `json:"leader,omitempty" db:"-"`
}

// AcceptedCount returns the number of members who accepted their invite.
func (r *Registration) AcceptedCount() int {
	n := 0
	for i := range r.TeamMembers {
		if r.TeamMembers[i].Status == MemberAccepted {
			n++
		}
	}
	return n
}

// EffectiveSize is the leader plus all accepted members.
func (r *Registration) EffectiveSize() int {
	return 1 + r.AcceptedCount()
}

// PendingSize counts the leader plus every non-rejected member. Invites are
// issued against this number so a leader cannot over-invite.
func (r *Registration) PendingSize() int {
	n := 1
	for i := range r.TeamMembers {
		if r.TeamMembers[i].Status != MemberRejected {
			n++
		}
	}
	return n
}

// FindMember matches a team member by bound user id, falling back to email
// for invites that predate the invitee's account.
func (r *Registration) FindMember(userID int, email string) *TeamMember {
	for i := range r.TeamMembers {
		m := &r.TeamMembers[i]
		if m.UserID != nil && *m.UserID == userID {
			return m
		}
	}
	for i := range r.TeamMembers {
		m := &r.TeamMembers[i]
		if m.UserID == nil && m.Email == email {
			return m
		}
	}
	return nil
}

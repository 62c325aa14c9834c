package services

import "errors"

// Shared service-level errors, mapped to HTTP statuses in the handlers layer.
var (
	// Missing entities
	ErrEventNotFound        = errors.New("event not found")
	ErrRoundNotFound        = errors.New("round not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrResultNotFound       = errors.New("result not found")
	ErrCertificateNotFound  = errors.New("certificate not found")
	ErrAttendanceNotFound   = errors.New("no attendance record found to delete")

	// Registration business rules
	ErrRegistrationClosed    = errors.New("registration is closed for this event")
	ErrPaymentNotVerified    = errors.New("payment not verified")
	ErrDuplicateRegistration = errors.New("user is already registered for this event")
	ErrCapacityExceeded      = errors.New("event has reached maximum capacity")
	ErrSoloEventHasNoTeam    = errors.New("solo events do not have team members")

	// Invite workflow
	ErrTeamFull           = errors.New("team limit reached")
	ErrInviteeNotFound    = errors.New("user to invite not found")
	ErrInviteeIneligible  = errors.New("user cannot be invited to this team")
	ErrAlreadyInvited     = errors.New("an invitation has already been sent to this user")
	ErrAlreadyMember      = errors.New("this user is already a member of the team")
	ErrNotInvited         = errors.New("user was not invited to this team")
	ErrAlreadyResponded   = errors.New("invitation has already been responded to")
	ErrInvalidInviteReply = errors.New("invite response must be accepted or rejected")

	// Authorization
	ErrForbiddenOperation    = errors.New("operation not allowed for the current user")
	ErrLeaderActionForbidden = errors.New("only the team leader can perform this action")

	// Rounds and results
	ErrRoundNotActive            = errors.New("results can only be created for the active round")
	ErrEmptyResults              = errors.New("results list cannot be empty")
	ErrQualifiedListRequired     = errors.New("qualified registrations are required for a non-final round")
	ErrInvalidRegistrationRefs   = errors.New("results reference registrations that are not active for this event")
	ErrResultAlreadyPublished    = errors.New("results are already published")
	ErrResultNotPublished        = errors.New("results are not published")
	ErrRoundResultsPublished     = errors.New("round results are published; unpublish or delete them first")
	ErrNotRegistered             = errors.New("user is not registered for this event")
	ErrNotQualified              = errors.New("registration did not qualify for this round")
	ErrPreviousRoundNotPublished = errors.New("previous round results are not published yet")

	// Authentication
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")

	// Validation
	ErrValidationFailed = errors.New("validation failed")
)

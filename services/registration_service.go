package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
	"github.com/blackbirdcodelabs/jnanagni-backend/repositories"
)

type RegisterInput struct {
	EventID        int                   `json:"event_id"`
	TeamName       string                `json:"team_name"`
	SubmissionData models.SubmissionData `json:"submission_data"`
}

type InviteMemberInput struct {
	Email      string `json:"email"`
	JnanagniID string `json:"jnanagni_id"`
}

type RespondToInviteInput struct {
	Status         string                `json:"status"`
	SubmissionData models.SubmissionData `json:"submission_data"`
}

type Pagination struct {
	TotalDocs   int `json:"total_docs"`
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
	Limit       int `json:"limit"`
}

type RegistrationService interface {
	Register(ctx context.Context, userID int, input RegisterInput) (*models.Registration, error)
	InviteMember(ctx context.Context, leaderID, registrationID int, input InviteMemberInput) (*models.Registration, error)
	RespondToInvite(ctx context.Context, userID, registrationID int, input RespondToInviteInput) (*models.Registration, error)
	RemoveMember(ctx context.Context, leaderID, registrationID, memberUserID int) (*models.Registration, error)
	DeleteRegistration(ctx context.Context, actorID, registrationID int) error
	GetMyInvites(ctx context.Context, userID int) ([]*models.Registration, error)

	GetByID(ctx context.Context, registrationID int) (*models.Registration, error)
	ListByEvent(ctx context.Context, eventID, page, limit int) ([]*models.Registration, *Pagination, error)
	ListByUser(ctx context.Context, userID int) ([]*models.Registration, error)
	UpdateSubmissionData(ctx context.Context, registrationID int, data models.SubmissionData) error
	UpdateStatus(ctx context.Context, registrationID int, status models.RegistrationStatus) error
}

type registrationService struct {
	regRepo   repositories.RegistrationRepository
	eventRepo repositories.EventRepository
	userRepo  repositories.UserRepository
	notifier  Notifier
	logger    *slog.Logger
}

func NewRegistrationService(
	regRepo repositories.RegistrationRepository,
	eventRepo repositories.EventRepository,
	userRepo repositories.UserRepository,
	notifier Notifier,
	logger *slog.Logger,
) RegistrationService {
	return &registrationService{
		regRepo:   regRepo,
		eventRepo: eventRepo,
		userRepo:  userRepo,
		notifier:  notifier,
		logger:    logger,
	}
}

// checkDuplicateSlot enforces the one-active-slot-per-user-per-event
// invariant (leader XOR accepted member). It must be re-run at every state
// transition that could introduce a new slot occupant.
func (s *registrationService) checkDuplicateSlot(ctx context.Context, eventID, userID int) error {
	_, err := s.regRepo.FindActiveSlot(ctx, eventID, userID)
	if err == nil {
		return ErrDuplicateRegistration
	}
	if errors.Is(err, repositories.ErrRegistrationNotFound) {
		return nil
	}
	return fmt.Errorf("failed to check duplicate registration: %w", err)
}

func (s *registrationService) Register(ctx context.Context, userID int, input RegisterInput) (*models.Registration, error) {
	event, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %d: %w", input.EventID, err)
	}
	if !event.IsRegistrationOpen {
		return nil, ErrRegistrationClosed
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user.Payment != models.PaymentVerified {
		return nil, ErrPaymentNotVerified
	}

	if err := s.checkDuplicateSlot(ctx, event.ID, userID); err != nil {
		return nil, err
	}

	if event.MaxRegistrations > 0 {
		count, err := s.regRepo.CountActiveByEvent(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		if count >= event.MaxRegistrations {
			return nil, ErrCapacityExceeded
		}
	}

	reg := &models.Registration{
		EventID:        event.ID,
		RegisteredBy:   userID,
		Status:         models.RegistrationActive,
		SubmissionData: input.SubmissionData,
	}
	if event.ParticipationType == models.ParticipationGroup {
		teamName := input.TeamName
		if name, ok := input.SubmissionData["teamName"].(string); ok && name != "" {
			teamName = name
		}
		if teamName == "" {
			teamName = "Team_" + user.JnanagniID
		}
		reg.TeamName = &teamName
	}

	if err := s.regRepo.Create(ctx, reg); err != nil {
		return nil, err
	}
	reg.TeamMembers = []models.TeamMember{}

	notifyAsync(s.logger, s.notifier, NotifyRegistrationConfirmed, user.Email, map[string]string{
		"Name":      user.Name,
		"EventName": event.Name,
	})
	return reg, nil
}

func (s *registrationService) InviteMember(ctx context.Context, leaderID, registrationID int, input InviteMemberInput) (*models.Registration, error) {
	reg, err := s.getRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.RegisteredBy != leaderID {
		return nil, ErrLeaderActionForbidden
	}

	event, err := s.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", reg.EventID, err)
	}
	if event.ParticipationType != models.ParticipationGroup {
		return nil, ErrSoloEventHasNoTeam
	}

	// Pending invites count against the ceiling so a leader cannot
	// over-invite and let acceptances race for phantom slots.
	if reg.PendingSize() >= event.MaxTeamSize {
		return nil, fmt.Errorf("%w (max: %d)", ErrTeamFull, event.MaxTeamSize)
	}

	invitee, err := s.findInvitee(ctx, input)
	if err != nil {
		return nil, err
	}
	if invitee.ID == leaderID {
		return nil, fmt.Errorf("%w: you cannot invite yourself", ErrInviteeIneligible)
	}
	if invitee.Payment != models.PaymentVerified {
		return nil, fmt.Errorf("%w: their payment has not been verified yet", ErrInviteeIneligible)
	}

	if existing := reg.FindMember(invitee.ID, invitee.Email); existing != nil {
		switch existing.Status {
		case models.MemberAccepted:
			return nil, ErrAlreadyMember
		case models.MemberPending:
			return nil, ErrAlreadyInvited
		}
	}

	if err := s.checkDuplicateSlot(ctx, event.ID, invitee.ID); err != nil {
		return nil, err
	}

	member := &models.TeamMember{
		RegistrationID: reg.ID,
		UserID:         &invitee.ID,
		Email:          invitee.Email,
		Status:         models.MemberPending,
	}
	if err := s.regRepo.AddMember(ctx, member); err != nil {
		return nil, err
	}
	reg.TeamMembers = append(reg.TeamMembers, *member)

	leader, err := s.userRepo.GetByID(ctx, leaderID)
	if err == nil {
		notifyAsync(s.logger, s.notifier, NotifyInviteSent, invitee.Email, map[string]string{
			"LeaderName": leader.Name,
			"TeamName":   derefString(reg.TeamName),
			"EventName":  event.Name,
		})
	}
	return reg, nil
}

func (s *registrationService) findInvitee(ctx context.Context, input InviteMemberInput) (*models.User, error) {
	var invitee *models.User
	var err error
	if input.JnanagniID != "" {
		invitee, err = s.userRepo.GetByJnanagniID(ctx, input.JnanagniID)
	} else if input.Email != "" {
		invitee, err = s.userRepo.GetByEmail(ctx, input.Email)
	} else {
		return nil, fmt.Errorf("%w: email or jnanagni id is required", ErrValidationFailed)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInviteeNotFound
		}
		return nil, fmt.Errorf("failed to find invitee: %w", err)
	}
	return invitee, nil
}

func (s *registrationService) RespondToInvite(ctx context.Context, userID, registrationID int, input RespondToInviteInput) (*models.Registration, error) {
	decision := models.MemberStatus(input.Status)
	if decision != models.MemberAccepted && decision != models.MemberRejected {
		return nil, ErrInvalidInviteReply
	}

	reg, err := s.getRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	member := reg.FindMember(userID, user.Email)
	if member == nil {
		return nil, ErrNotInvited
	}
	if member.Status == decision {
		// Re-invocation is expected operational behavior; report success.
		return reg, nil
	}
	if member.Status != models.MemberPending {
		return nil, ErrAlreadyResponded
	}

	if decision == models.MemberRejected {
		if err := s.regRepo.RejectMember(ctx, reg.ID, userID, user.Email); err != nil {
			if errors.Is(err, repositories.ErrMemberNotFound) {
				return nil, ErrNotInvited
			}
			return nil, err
		}
		s.notifyLeader(ctx, reg, user, "declined")
		return s.getRegistration(ctx, registrationID)
	}

	if user.Payment != models.PaymentVerified {
		return nil, ErrPaymentNotVerified
	}
	if err := s.checkDuplicateSlot(ctx, reg.EventID, userID); err != nil {
		return nil, err
	}

	event, err := s.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", reg.EventID, err)
	}

	err = s.regRepo.AcceptMember(ctx, reg.ID, userID, user.Email, input.SubmissionData, event.MaxTeamSize)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamCapacityReached):
			return nil, fmt.Errorf("%w (max: %d)", ErrTeamFull, event.MaxTeamSize)
		case errors.Is(err, repositories.ErrMemberNotFound):
			return nil, ErrNotInvited
		case errors.Is(err, repositories.ErrMemberAlreadyResponded):
			return nil, ErrAlreadyResponded
		}
		return nil, err
	}

	s.notifyLeader(ctx, reg, user, "accepted")
	return s.getRegistration(ctx, registrationID)
}

func (s *registrationService) notifyLeader(ctx context.Context, reg *models.Registration, member *models.User, decision string) {
	leader, err := s.userRepo.GetByID(ctx, reg.RegisteredBy)
	if err != nil {
		return
	}
	eventName := ""
	if event, err := s.eventRepo.GetByID(ctx, reg.EventID); err == nil {
		eventName = event.Name
	}
	notifyAsync(s.logger, s.notifier, NotifyInviteResponse, leader.Email, map[string]string{
		"MemberName": member.Name,
		"Decision":   decision,
		"TeamName":   derefString(reg.TeamName),
		"EventName":  eventName,
	})
}

func (s *registrationService) RemoveMember(ctx context.Context, leaderID, registrationID, memberUserID int) (*models.Registration, error) {
	reg, err := s.getRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.RegisteredBy != leaderID {
		return nil, ErrLeaderActionForbidden
	}

	if err := s.regRepo.RemoveMember(ctx, registrationID, memberUserID); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrNotInvited
		}
		return nil, err
	}
	return s.getRegistration(ctx, registrationID)
}

func (s *registrationService) DeleteRegistration(ctx context.Context, actorID, registrationID int) error {
	reg, err := s.getRegistration(ctx, registrationID)
	if err != nil {
		return err
	}

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user %d: %w", actorID, err)
	}
	if reg.RegisteredBy != actorID && !actor.IsAdmin() {
		return ErrLeaderActionForbidden
	}

	if err := s.regRepo.Delete(ctx, registrationID); err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return err
	}
	return nil
}

func (s *registrationService) GetMyInvites(ctx context.Context, userID int) ([]*models.Registration, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return s.regRepo.ListPendingInvites(ctx, userID, user.Email)
}

func (s *registrationService) getRegistration(ctx context.Context, id int) (*models.Registration, error) {
	reg, err := s.regRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration %d: %w", id, err)
	}
	return reg, nil
}

func (s *registrationService) GetByID(ctx context.Context, registrationID int) (*models.Registration, error) {
	return s.getRegistration(ctx, registrationID)
}

func (s *registrationService) ListByEvent(ctx context.Context, eventID, page, limit int) ([]*models.Registration, *Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	regs, total, err := s.regRepo.ListByEvent(ctx, eventID, limit, (page-1)*limit)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + limit - 1) / limit
	return regs, &Pagination{
		TotalDocs:   total,
		TotalPages:  totalPages,
		CurrentPage: page,
		Limit:       limit,
	}, nil
}

func (s *registrationService) ListByUser(ctx context.Context, userID int) ([]*models.Registration, error) {
	return s.regRepo.ListActiveByUser(ctx, userID)
}

func (s *registrationService) UpdateSubmissionData(ctx context.Context, registrationID int, data models.SubmissionData) error {
	if err := s.regRepo.UpdateSubmissionData(ctx, registrationID, data); err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return err
	}
	return nil
}

func (s *registrationService) UpdateStatus(ctx context.Context, registrationID int, status models.RegistrationStatus) error {
	switch status {
	case models.RegistrationActive, models.RegistrationDisqualified:
		if err := s.regRepo.UpdateStatus(ctx, registrationID, status); err != nil {
			if errors.Is(err, repositories.ErrRegistrationNotFound) {
				return ErrRegistrationNotFound
			}
			return err
		}
		return nil
	case models.RegistrationCancelled:
		// Cancellation is a hard delete, matching the dissolve semantics.
		if err := s.regRepo.Delete(ctx, registrationID); err != nil {
			if errors.Is(err, repositories.ErrRegistrationNotFound) {
				return ErrRegistrationNotFound
			}
			return err
		}
		return nil
	default:
		return fmt.Errorf("%w: invalid registration status %q", ErrValidationFailed, status)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
	"github.com/blackbirdcodelabs/jnanagni-backend/repositories"
)

const (
	MarkStatusCheckedIn        = "checked_in"
	MarkStatusAlreadyCheckedIn = "already_checked_in"
)

type MarkInput struct {
	EventID    int    `json:"event_id"`
	RoundID    int    `json:"round_id"`
	JnanagniID string `json:"jnanagni_id"`
	// Force bypasses both the qualification gate and the team-size gate. Set
	// after the volunteer confirms the incomplete-team warning.
	Force     bool `json:"force"`
	ScannedBy int  `json:"-"`
}

// MarkOutcome is the scanner's response. RequiresConfirmation signals the
// incomplete-team handshake: nothing has been recorded and the volunteer must
// resubmit with Force to proceed.
type MarkOutcome struct {
	Status               string     `json:"status,omitempty"`
	RequiresConfirmation bool       `json:"requires_confirmation,omitempty"`
	Message              string     `json:"message"`
	UserName             string     `json:"user_name,omitempty"`
	TeamName             string     `json:"team_name,omitempty"`
	IsRegistrationValid  bool       `json:"is_registration_valid"`
	IsTeamComplete       bool       `json:"is_team_complete"`
	CurrentSize          int        `json:"current_size,omitempty"`
	MinRequired          int        `json:"min_required,omitempty"`
	PresentCount         int        `json:"present_count,omitempty"`
	CheckInTime          *time.Time `json:"check_in_time,omitempty"`
}

type AttendanceService interface {
	// Mark checks one participant into one round. Repeat scans of the same
	// participant succeed and report the original check-in time.
	Mark(ctx context.Context, input MarkInput) (*MarkOutcome, error)
	Unmark(ctx context.Context, eventID, roundID int, jnanagniID string) error
	Stats(ctx context.Context, eventID, roundID int) ([]models.TeamAttendanceStat, error)
	ListByRound(ctx context.Context, eventID, roundID int) ([]*models.Attendance, error)
}

type attendanceService struct {
	attRepo    repositories.AttendanceRepository
	regRepo    repositories.RegistrationRepository
	eventRepo  repositories.EventRepository
	userRepo   repositories.UserRepository
	resultRepo repositories.ResultRepository
	certSvc    CertificateService
	logger     *slog.Logger
}

func NewAttendanceService(
	attRepo repositories.AttendanceRepository,
	regRepo repositories.RegistrationRepository,
	eventRepo repositories.EventRepository,
	userRepo repositories.UserRepository,
	resultRepo repositories.ResultRepository,
	certSvc CertificateService,
	logger *slog.Logger,
) AttendanceService {
	return &attendanceService{
		attRepo:    attRepo,
		regRepo:    regRepo,
		eventRepo:  eventRepo,
		userRepo:   userRepo,
		resultRepo: resultRepo,
		certSvc:    certSvc,
		logger:     logger,
	}
}

func (s *attendanceService) Mark(ctx context.Context, input MarkInput) (*MarkOutcome, error) {
	event, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %d: %w", input.EventID, err)
	}
	round := event.FindRound(input.RoundID)
	if round == nil {
		return nil, ErrRoundNotFound
	}

	user, err := s.userRepo.GetByJnanagniID(ctx, input.JnanagniID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up participant: %w", err)
	}

	reg, err := s.regRepo.FindActiveSlot(ctx, event.ID, user.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("failed to find registration: %w", err)
	}

	// Gate 1: from round two onward the team must appear in the published
	// result of the previous round. Drafts do not count.
	if round.SequenceNumber > 1 && !input.Force {
		prev := event.PreviousRound(round.ID)
		if prev == nil {
			return nil, ErrRoundNotFound
		}
		prevResult, err := s.resultRepo.FindByEventAndRound(ctx, event.ID, prev.ID)
		if err != nil {
			if errors.Is(err, repositories.ErrResultNotFound) {
				return nil, ErrPreviousRoundNotPublished
			}
			return nil, err
		}
		if !prevResult.Published {
			return nil, ErrPreviousRoundNotPublished
		}
		if !prevResult.IsQualified(reg.ID) {
			return nil, ErrNotQualified
		}
	}

	isTeamComplete := event.ParticipationType != models.ParticipationGroup ||
		reg.EffectiveSize() >= event.MinTeamSize

	// Gate 2: an incomplete team is not rejected outright; the scanner gets a
	// confirmation prompt and retries with Force if the organizers allow it.
	if event.ParticipationType == models.ParticipationGroup && !input.Force && !isTeamComplete {
		return &MarkOutcome{
			RequiresConfirmation: true,
			Message: fmt.Sprintf("Team %q has %d of %d required members. Confirm to check in anyway.",
				derefString(reg.TeamName), reg.EffectiveSize(), event.MinTeamSize),
			UserName:            user.Name,
			TeamName:            derefString(reg.TeamName),
			IsRegistrationValid: false,
			IsTeamComplete:      false,
			CurrentSize:         reg.EffectiveSize(),
			MinRequired:         event.MinTeamSize,
		}, nil
	}

	att := &models.Attendance{
		EventID:        event.ID,
		RoundID:        round.ID,
		RoundName:      round.Name,
		RegistrationID: reg.ID,
		UserID:         user.ID,
		ScannedBy:      input.ScannedBy,
	}

	status := MarkStatusCheckedIn
	message := fmt.Sprintf("%s checked in for %s", user.Name, round.Name)
	err = s.attRepo.Create(ctx, att)
	if err != nil {
		if !errors.Is(err, repositories.ErrAttendanceConflict) {
			return nil, err
		}
		// Concurrent or repeated scan: the unique index on
		// (event, round, user) guarantees exactly one record exists.
		existing, findErr := s.attRepo.Find(ctx, event.ID, round.ID, user.ID)
		if findErr != nil {
			return nil, findErr
		}
		att = existing
		status = MarkStatusAlreadyCheckedIn
		message = fmt.Sprintf("%s is already checked in for %s", user.Name, round.Name)
	}

	if _, certErr := s.certSvc.UpsertOnAttendance(ctx, reg, user.ID, round); certErr != nil {
		// The check-in stands even when progress tracking lags behind.
		s.logger.Error("failed to upsert certificate on check-in",
			slog.Int("registration_id", reg.ID),
			slog.Int("user_id", user.ID),
			slog.Any("error", certErr))
	}

	presentCount, err := s.attRepo.CountByRegistration(ctx, reg.ID, event.ID, round.ID)
	if err != nil {
		return nil, err
	}

	checkInTime := att.CreatedAt
	return &MarkOutcome{
		Status:   status,
		Message:  message,
		UserName: user.Name,
		TeamName: derefString(reg.TeamName),
		// False exactly when an incomplete roster was force-admitted, so the
		// scanner can surface the override.
		IsRegistrationValid: isTeamComplete,
		IsTeamComplete:      isTeamComplete,
		CurrentSize:         reg.EffectiveSize(),
		MinRequired:         event.MinTeamSize,
		PresentCount:        presentCount,
		CheckInTime:         &checkInTime,
	}, nil
}

func (s *attendanceService) Unmark(ctx context.Context, eventID, roundID int, jnanagniID string) error {
	user, err := s.userRepo.GetByJnanagniID(ctx, jnanagniID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to look up participant: %w", err)
	}

	if err := s.attRepo.Delete(ctx, eventID, roundID, user.ID); err != nil {
		if errors.Is(err, repositories.ErrAttendanceNotFound) {
			return ErrAttendanceNotFound
		}
		return err
	}
	return nil
}

func (s *attendanceService) Stats(ctx context.Context, eventID, roundID int) ([]models.TeamAttendanceStat, error) {
	if _, err := s.eventRepo.GetRound(ctx, eventID, roundID); err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return s.attRepo.StatsByRound(ctx, eventID, roundID)
}

func (s *attendanceService) ListByRound(ctx context.Context, eventID, roundID int) ([]*models.Attendance, error) {
	if _, err := s.eventRepo.GetRound(ctx, eventID, roundID); err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return s.attRepo.ListByRound(ctx, eventID, roundID)
}

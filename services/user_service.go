package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
	"github.com/blackbirdcodelabs/jnanagni-backend/repositories"
)

type UserService interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByJnanagniID(ctx context.Context, jnanagniID string) (*models.User, error)
	// VerifyPayment marks the user's festival payment as verified, unlocking
	// registration and invite acceptance.
	VerifyPayment(ctx context.Context, userID int) (*models.User, error)
	AssignSpecialRoles(ctx context.Context, userID int, roles []models.SpecialRole) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewUserService(userRepo repositories.UserRepository, notifier Notifier, logger *slog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *userService) GetByID(ctx context.Context, id int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) GetByJnanagniID(ctx context.Context, jnanagniID string) (*models.User, error) {
	user, err := s.userRepo.GetByJnanagniID(ctx, jnanagniID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by jnanagni id: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) VerifyPayment(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Payment == models.PaymentVerified {
		return user, nil
	}

	if err := s.userRepo.UpdatePaymentStatus(ctx, userID, models.PaymentVerified); err != nil {
		return nil, err
	}
	if err := s.userRepo.SetVerified(ctx, userID); err != nil {
		return nil, err
	}
	user.Payment = models.PaymentVerified
	user.IsVerified = true

	notifyAsync(s.logger, s.notifier, NotifyPaymentVerified, user.Email, map[string]string{
		"Name":   user.Name,
		"Status": string(models.PaymentVerified),
	})
	return user, nil
}

func (s *userService) AssignSpecialRoles(ctx context.Context, userID int, roles []models.SpecialRole) (*models.User, error) {
	for _, role := range roles {
		switch role {
		case models.SpecialRoleAdmin, models.SpecialRoleEventCoordinator,
			models.SpecialRoleVolunteer, models.SpecialRoleCategoryLead,
			models.SpecialRoleFinanceTeam:
		default:
			return nil, fmt.Errorf("%w: unknown special role %q", ErrValidationFailed, role)
		}
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateSpecialRoles(ctx, userID, roles); err != nil {
		return nil, err
	}
	user.SpecialRoles = roles

	notifyAsync(s.logger, s.notifier, NotifyRoleChanged, user.Email, map[string]string{
		"Name": user.Name,
		"Role": rolesLabel(roles),
	})
	return user, nil
}

func rolesLabel(roles []models.SpecialRole) string {
	if len(roles) == 0 {
		return "none"
	}
	label := ""
	for i, role := range roles {
		if i > 0 {
			label += ", "
		}
		label += string(role)
	}
	return label
}

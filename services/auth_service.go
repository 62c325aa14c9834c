package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
	"github.com/blackbirdcodelabs/jnanagni-backend/repositories"
)

const minPasswordLength = 8

// jnanagniIDRetries bounds the regenerate-and-retry loop for the festival id.
const jnanagniIDRetries = 5

type AuthService interface {
	SignUp(ctx context.Context, input SignUpInput) (*models.User, error)
	SignIn(ctx context.Context, creds models.Credentials) (*models.User, error)
}

type SignUpInput struct {
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Password  string          `json:"password"`
	College   string          `json:"college"`
	ContactNo string          `json:"contact_no"`
	Role      models.UserRole `json:"role"`
}

type authService struct {
	userRepo repositories.UserRepository
}

func NewAuthService(userRepo repositories.UserRepository) AuthService {
	return &authService{userRepo: userRepo}
}

func (s *authService) SignUp(ctx context.Context, input SignUpInput) (*models.User, error) {
	if err := validateSignUp(&input); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         input.Name,
		Email:        strings.ToLower(input.Email),
		PasswordHash: string(hashedPassword),
		Role:         input.Role,
		SpecialRoles: []models.SpecialRole{},
		Payment:      models.PaymentPending,
	}
	if input.College != "" {
		user.College = &input.College
	}
	if input.ContactNo != "" {
		user.ContactNo = &input.ContactNo
	}

	for attempt := 0; attempt < jnanagniIDRetries; attempt++ {
		user.JnanagniID, err = generateJnanagniID()
		if err != nil {
			return nil, err
		}
		err = s.userRepo.Create(ctx, user)
		if err == nil {
			user.PasswordHash = ""
			return user, nil
		}
		if errors.Is(err, repositories.ErrUserJnanagniIDConflict) {
			continue
		}
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return nil, ErrAuthEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return nil, fmt.Errorf("failed to allocate a unique jnanagni id after %d attempts", jnanagniIDRetries)
}

func validateSignUp(input *SignUpInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if input.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidationFailed)
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return fmt.Errorf("%w: a valid email address is required", ErrValidationFailed)
	}
	if len(input.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidationFailed, minPasswordLength)
	}
	switch input.Role {
	case models.RoleStudent, models.RoleGkvian, models.RoleFetian, models.RoleFaculty:
	case "":
		input.Role = models.RoleStudent
	default:
		return fmt.Errorf("%w: unknown role %q", ErrValidationFailed, input.Role)
	}
	return nil
}

func (s *authService) SignIn(ctx context.Context, creds models.Credentials) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
)

func TestSignUpAndSignIn(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewAuthService(users)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpInput{
		Name:     "Aarav Sharma",
		Email:    "Aarav@Example.com",
		Password: "correct-horse",
		College:  "GKV",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "aarav@example.com", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.True(t, strings.HasPrefix(user.JnanagniID, "JGN26-"))
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, models.PaymentPending, user.Payment)

	signedIn, err := svc.SignIn(ctx, models.Credentials{Email: "aarav@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, signedIn.ID)
	assert.Empty(t, signedIn.PasswordHash)

	_, err = svc.SignIn(ctx, models.Credentials{Email: "aarav@example.com", Password: "wrong-horse"})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)

	_, err = svc.SignIn(ctx, models.Credentials{Email: "nobody@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)
}

func TestSignUpValidation(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	ctx := context.Background()

	cases := []struct {
		name  string
		input SignUpInput
	}{
		{"missing name", SignUpInput{Email: "a@example.com", Password: "longenough"}},
		{"bad email", SignUpInput{Name: "Aarav", Email: "not-an-email", Password: "longenough"}},
		{"short password", SignUpInput{Name: "Aarav", Email: "a@example.com", Password: "short"}},
		{"unknown role", SignUpInput{Name: "Aarav", Email: "a@example.com", Password: "longenough", Role: "wizard"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SignUp(ctx, tc.input)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	ctx := context.Background()

	input := SignUpInput{Name: "Aarav", Email: "aarav@example.com", Password: "correct-horse"}
	_, err := svc.SignUp(ctx, input)
	require.NoError(t, err)

	input.Name = "Someone Else"
	_, err = svc.SignUp(ctx, input)
	assert.ErrorIs(t, err, ErrAuthEmailTaken)
}

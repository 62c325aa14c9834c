package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
)

const testSecret = "test-secret"

func signTestToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authedRequest(t *testing.T, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	var gotUserID int
	handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		gotUserID = id
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		token := signTestToken(t, testSecret, jwt.MapClaims{
			"user_id": 42,
			"role":    "student",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, token))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 42, gotUserID)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, ""))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signTestToken(t, "another-secret", jwt.MapClaims{"user_id": 42})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signTestToken(t, testSecret, jwt.MapClaims{
			"user_id": 42,
			"exp":     time.Now().Add(-time.Minute).Unix(),
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireSpecialRole(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	handler := auth.Authenticate(
		RequireSpecialRole(models.SpecialRoleAdmin, models.SpecialRoleEventCoordinator)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})))

	run := func(t *testing.T, specialRoles []string) int {
		claims := jwt.MapClaims{
			"user_id": 42,
			"exp":     time.Now().Add(time.Hour).Unix(),
		}
		if specialRoles != nil {
			claims["special_roles"] = specialRoles
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, signTestToken(t, testSecret, claims)))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, run(t, []string{"event_coordinator"}))
	assert.Equal(t, http.StatusOK, run(t, []string{"volunteer", "admin"}))
	assert.Equal(t, http.StatusForbidden, run(t, []string{"volunteer"}))
	assert.Equal(t, http.StatusForbidden, run(t, nil))
}

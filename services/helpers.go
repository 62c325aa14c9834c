package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// generateJnanagniID produces the festival-wide external id printed on passes,
// e.g. JGN26-3F9A2C.
func generateJnanagniID() (string, error) {
	token, err := generateSecureToken(3)
	if err != nil {
		return "", fmt.Errorf("failed to generate jnanagni id: %w", err)
	}
	return "JGN26-" + strings.ToUpper(token), nil
}

// generateCertificateID produces the shareable certificate id,
// e.g. JGN26-CERT-1B7E90AF.
func generateCertificateID() (string, error) {
	token, err := generateSecureToken(4)
	if err != nil {
		return "", fmt.Errorf("failed to generate certificate id: %w", err)
	}
	return "JGN26-CERT-" + strings.ToUpper(token), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package accounts

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/inpetum/identity/internal/platform/httpx"
)

// ErrWeakSecret indicates the secret fails the minimum strength policy.
var ErrWeakSecret = fmt.Errorf("secret must be at least 8 characters with at least one letter and one digit: %w", httpx.ErrValidation)

const minSecretLength = 8

// HashSecret produces a salted bcrypt hash of the plaintext secret.
func HashSecret(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("accounts: hash secret: %w", err)
	}
	return string(hash), nil
}

// CompareSecret reports whether the plaintext matches the stored hash.
func CompareSecret(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// ValidateSecretStrength enforces the minimum secret policy: at least 8
// characters with at least one letter and one digit.
func ValidateSecretStrength(plaintext string) error {
	// Runes, not bytes: a multi-byte secret must not clear the bar early.
	if utf8.RuneCountInString(plaintext) < minSecretLength {
		return ErrWeakSecret
	}
	var hasLetter, hasDigit bool
	for _, r := range plaintext {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrWeakSecret
	}
	return nil
}

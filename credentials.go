package whisper

import (
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// Credentials represents user credentials for signup or login
type Credentials struct {
	Username string
	Password string
}

// SignupValidator validates credentials during signup
type SignupValidator func(creds *Credentials) error

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// DefaultSignupValidator provides sensible default validation for signup
var DefaultSignupValidator SignupValidator = func(creds *Credentials) error {
	// Username: 3-20 chars, alphanumeric + underscore + hyphen
	if len(creds.Username) < 3 || len(creds.Username) > 20 {
		return fmt.Errorf("username must be 3-20 characters")
	}
	if !usernameRegex.MatchString(creds.Username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	}

	// Password: minimum 8 characters
	if len(creds.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	return nil
}

// HashPassword hashes a plaintext password with bcrypt. The salt is
// embedded in the returned hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether the plaintext password matches the stored
// bcrypt hash.
func VerifyPassword(passwordHash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}

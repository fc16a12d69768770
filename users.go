package whisper

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is a single account. A user is reachable through local credentials
// (Username + PasswordHash), a Google identity (GoogleID), or both.
type User struct {
	ID           string
	Username     string
	DisplayName  string
	PasswordHash string
	GoogleID     string
	Secret       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSecret reports whether the user has ever submitted a secret.
func (u *User) HasSecret() bool {
	return u.Secret != nil
}

// Display returns the name shown for this user in views.
func (u *User) Display() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Anonymous"
}

// NewUserID generates a new unique user ID.
func NewUserID() string {
	return uuid.NewString()
}

// UserStore is the persistence contract for user accounts. Implementations
// live under stores/ (filesystem), stores/gorm (SQL) and stores/gae
// (Cloud Datastore). All failures are reported as explicit errors; lookup
// misses return ErrUserNotFound and duplicate usernames return
// ErrUsernameTaken.
type UserStore interface {
	// CreateUser persists a new user. Fails with ErrUsernameTaken if the
	// username is already registered.
	CreateUser(ctx context.Context, user *User) error

	// GetUserById retrieves a user by their ID.
	GetUserById(ctx context.Context, userId string) (*User, error)

	// GetUserByUsername retrieves a local-auth user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// FindOrCreateByGoogleID returns the user owning the given Google
	// subject identifier, creating one if absent. The lookup+insert is
	// atomic: concurrent first-time logins with the same identity resolve
	// to a single user record.
	FindOrCreateByGoogleID(ctx context.Context, googleID, displayName string) (user *User, created bool, err error)

	// SetSecret overwrites the user's secret. Fails with ErrUserNotFound
	// if the user no longer exists.
	SetSecret(ctx context.Context, userId, secret string) error

	// ListUsersWithSecrets returns every user whose secret has been set,
	// in store-native order.
	ListUsersWithSecrets(ctx context.Context) ([]*User, error)
}

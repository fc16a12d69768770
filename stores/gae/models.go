package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	"github.com/panyam/whisper"
)

// Kind constants for Datastore entities
const (
	KindUser     = "User"
	KindUsername = "Username"
	KindGoogleID = "GoogleID"
)

// UserEntity is the Datastore entity for users. HasSecret is indexed
// separately because Datastore cannot filter on "secret is not null".
type UserEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Username     string         `datastore:"username"`
	DisplayName  string         `datastore:"display_name,noindex"`
	PasswordHash string         `datastore:"password_hash,noindex"`
	GoogleID     string         `datastore:"google_id"`
	Secret       string         `datastore:"secret,noindex"`
	HasSecret    bool           `datastore:"has_secret"`
	CreatedAt    time.Time      `datastore:"created_at"`
	UpdatedAt    time.Time      `datastore:"updated_at"`
}

func (e *UserEntity) ToUser() *whisper.User {
	user := &whisper.User{
		ID:           e.Key.Name,
		Username:     e.Username,
		DisplayName:  e.DisplayName,
		PasswordHash: e.PasswordHash,
		GoogleID:     e.GoogleID,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	if e.HasSecret {
		secret := e.Secret
		user.Secret = &secret
	}
	return user
}

func UserToEntity(u *whisper.User, key *datastore.Key) *UserEntity {
	entity := &UserEntity{
		Key:          key,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		GoogleID:     u.GoogleID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.Secret != nil {
		entity.Secret = *u.Secret
		entity.HasSecret = true
	}
	return entity
}

// MappingEntity reserves a unique attribute value (username, google id)
// for a user
type MappingEntity struct {
	Key    *datastore.Key `datastore:"__key__"`
	UserID string         `datastore:"user_id"`
}

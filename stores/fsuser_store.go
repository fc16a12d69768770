// Package stores provides a filesystem implementation of the whisper
// UserStore. Users are stored as JSON files with lookaside index files for
// username and Google identity lookups. Suitable for development and tests;
// production deployments should prefer stores/gorm or stores/gae.
package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/panyam/whisper"
)

// fsUser is the on-disk representation of a whisper.User
type fsUser struct {
	UserId       string    `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	GoogleID     string    `json:"google_id,omitempty"`
	Secret       *string   `json:"secret,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *fsUser) toUser() *whisper.User {
	return &whisper.User{
		ID:           u.UserId,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		GoogleID:     u.GoogleID,
		Secret:       u.Secret,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func fromUser(u *whisper.User) *fsUser {
	return &fsUser{
		UserId:       u.ID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		GoogleID:     u.GoogleID,
		Secret:       u.Secret,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// indexEntry maps a unique attribute (username, google id) to a user id
type indexEntry struct {
	UserId string `json:"user_id"`
}

// FSUserStore stores users as JSON files
type FSUserStore struct {
	StoragePath string

	// Guards create/update paths so username uniqueness and google-id
	// find-or-create are atomic within the process.
	mu sync.Mutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) userPath(userId string) string {
	return filepath.Join(s.StoragePath, "users", userId+".json")
}

func (s *FSUserStore) usernamePath(username string) string {
	return filepath.Join(s.StoragePath, "usernames", username+".json")
}

func (s *FSUserStore) googleIdPath(googleId string) string {
	return filepath.Join(s.StoragePath, "googleids", googleId+".json")
}

func (s *FSUserStore) CreateUser(ctx context.Context, user *whisper.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username != "" {
		if _, err := s.readIndex(s.usernamePath(user.Username)); err == nil {
			return whisper.ErrUsernameTaken
		}
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if err := s.writeUser(user); err != nil {
		return err
	}
	if user.Username != "" {
		if err := s.writeIndex(s.usernamePath(user.Username), user.ID); err != nil {
			return err
		}
	}
	if user.GoogleID != "" {
		if err := s.writeIndex(s.googleIdPath(user.GoogleID), user.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *FSUserStore) GetUserById(ctx context.Context, userId string) (*whisper.User, error) {
	return s.readUser(s.userPath(userId))
}

func (s *FSUserStore) GetUserByUsername(ctx context.Context, username string) (*whisper.User, error) {
	entry, err := s.readIndex(s.usernamePath(username))
	if err != nil {
		return nil, err
	}
	return s.readUser(s.userPath(entry.UserId))
}

func (s *FSUserStore) FindOrCreateByGoogleID(ctx context.Context, googleID, displayName string) (*whisper.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, err := s.readIndex(s.googleIdPath(googleID)); err == nil {
		user, err := s.readUser(s.userPath(entry.UserId))
		return user, false, err
	}

	now := time.Now()
	user := &whisper.User{
		ID:          whisper.NewUserID(),
		DisplayName: displayName,
		GoogleID:    googleID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.writeUser(user); err != nil {
		return nil, false, err
	}
	if err := s.writeIndex(s.googleIdPath(googleID), user.ID); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *FSUserStore) SetSecret(ctx context.Context, userId, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.readUser(s.userPath(userId))
	if err != nil {
		return err
	}
	user.Secret = &secret
	user.UpdatedAt = time.Now()
	return s.writeUser(user)
}

func (s *FSUserStore) ListUsersWithSecrets(ctx context.Context) ([]*whisper.User, error) {
	dir := filepath.Join(s.StoragePath, "users")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var users []*whisper.User
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		user, err := s.readUser(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if user.HasSecret() {
			users = append(users, user)
		}
	}
	return users, nil
}

// writeFileAtomic replaces path with data via a temp file in the same
// directory, so a concurrent reader never observes a half-written user or
// index file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "whisper-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FSUserStore) readUser(path string) (*whisper.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, whisper.ErrUserNotFound
		}
		return nil, err
	}

	var user fsUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("corrupt user file %s: %w", path, err)
	}
	return user.toUser(), nil
}

func (s *FSUserStore) writeUser(user *whisper.User) error {
	path := s.userPath(user.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fromUser(user), "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func (s *FSUserStore) readIndex(path string) (*indexEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, whisper.ErrUserNotFound
		}
		return nil, err
	}
	var entry indexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt index file %s: %w", path, err)
	}
	return &entry, nil
}

func (s *FSUserStore) writeIndex(path, userId string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(&indexEntry{UserId: userId})
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

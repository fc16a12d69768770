package gae

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	"github.com/panyam/whisper"
)

// UserStore implements whisper.UserStore using Google Cloud Datastore
type UserStore struct {
	client    *datastore.Client
	namespace string
}

// NewUserStore creates a new Datastore-backed UserStore
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{client: client, namespace: namespace}
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) CreateUser(ctx context.Context, user *whisper.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	userKey := s.namespacedKey(KindUser, user.ID)
	entity := UserToEntity(user, userKey)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		if user.Username != "" {
			usernameKey := s.namespacedKey(KindUsername, user.Username)
			var existing MappingEntity
			err := tx.Get(usernameKey, &existing)
			if err == nil {
				return whisper.ErrUsernameTaken
			}
			if !errors.Is(err, datastore.ErrNoSuchEntity) {
				return err
			}
			if _, err := tx.Put(usernameKey, &MappingEntity{Key: usernameKey, UserID: user.ID}); err != nil {
				return err
			}
		}
		if user.GoogleID != "" {
			googleKey := s.namespacedKey(KindGoogleID, user.GoogleID)
			if _, err := tx.Put(googleKey, &MappingEntity{Key: googleKey, UserID: user.ID}); err != nil {
				return err
			}
		}
		_, err := tx.Put(userKey, entity)
		return err
	})
	return err
}

func (s *UserStore) GetUserById(ctx context.Context, userId string) (*whisper.User, error) {
	key := s.namespacedKey(KindUser, userId)
	var entity UserEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, whisper.ErrUserNotFound
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*whisper.User, error) {
	mappingKey := s.namespacedKey(KindUsername, username)
	var mapping MappingEntity
	if err := s.client.Get(ctx, mappingKey, &mapping); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, whisper.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserById(ctx, mapping.UserID)
}

// FindOrCreateByGoogleID resolves a Google subject identifier to a user.
// The mapping lookup and the user insert run in a single transaction, so
// concurrent first-time logins with the same identity converge on one
// record.
func (s *UserStore) FindOrCreateByGoogleID(ctx context.Context, googleID, displayName string) (*whisper.User, bool, error) {
	var user *whisper.User
	created := false

	googleKey := s.namespacedKey(KindGoogleID, googleID)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		// Reset in case the transaction retries
		user, created = nil, false

		var mapping MappingEntity
		err := tx.Get(googleKey, &mapping)
		if err == nil {
			var entity UserEntity
			if err := tx.Get(s.namespacedKey(KindUser, mapping.UserID), &entity); err != nil {
				return err
			}
			user = entity.ToUser()
			return nil
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}

		now := time.Now()
		newUser := &whisper.User{
			ID:          whisper.NewUserID(),
			DisplayName: displayName,
			GoogleID:    googleID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		userKey := s.namespacedKey(KindUser, newUser.ID)
		if _, err := tx.Put(userKey, UserToEntity(newUser, userKey)); err != nil {
			return err
		}
		if _, err := tx.Put(googleKey, &MappingEntity{Key: googleKey, UserID: newUser.ID}); err != nil {
			return err
		}
		user, created = newUser, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

func (s *UserStore) SetSecret(ctx context.Context, userId, secret string) error {
	userKey := s.namespacedKey(KindUser, userId)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(userKey, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return whisper.ErrUserNotFound
			}
			return err
		}
		entity.Secret = secret
		entity.HasSecret = true
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(userKey, &entity)
		return err
	})
	return err
}

func (s *UserStore) ListUsersWithSecrets(ctx context.Context) ([]*whisper.User, error) {
	query := datastore.NewQuery(KindUser).
		Namespace(s.namespace).
		FilterField("has_secret", "=", true)

	var users []*whisper.User
	it := s.client.Run(ctx, query)
	for {
		var entity UserEntity
		if _, err := it.Next(&entity); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, err
		}
		users = append(users, entity.ToUser())
	}
	return users, nil
}

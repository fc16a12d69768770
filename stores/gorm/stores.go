package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/panyam/whisper"
)

// AutoMigrate runs database migrations for all whisper tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements whisper.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a GORM-backed UserStore and runs migrations.
func NewUserStore(db *gorm.DB) (*UserStore, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return &UserStore{db: db}, nil
}

func (s *UserStore) CreateUser(ctx context.Context, user *whisper.User) error {
	model := UserToModel(user)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return whisper.ErrUsernameTaken
		}
		return err
	}
	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *UserStore) GetUserById(ctx context.Context, userId string) (*whisper.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, whisper.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*whisper.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, whisper.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

// FindOrCreateByGoogleID resolves a Google subject identifier to a user,
// inserting a new record only if absent. The insert uses ON CONFLICT DO
// NOTHING on the google_id unique index, so two concurrent first-time
// logins converge on a single row; the loser of the race re-reads the
// winner's record.
func (s *UserStore) FindOrCreateByGoogleID(ctx context.Context, googleID, displayName string) (*whisper.User, bool, error) {
	var user *whisper.User
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model UserModel
		err := tx.First(&model, "google_id = ?", googleID).Error
		if err == nil {
			user = model.ToUser()
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		newModel := &UserModel{
			ID:          whisper.NewUserID(),
			DisplayName: displayName,
			GoogleID:    &googleID,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "google_id"}},
			DoNothing: true,
		}).Create(newModel)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			// Lost the race - fetch the row the winner inserted
			if err := tx.First(&model, "google_id = ?", googleID).Error; err != nil {
				return err
			}
			user = model.ToUser()
			return nil
		}

		created = true
		user = newModel.ToUser()
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

func (s *UserStore) SetSecret(ctx context.Context, userId, secret string) error {
	result := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", userId).
		Updates(map[string]any{"secret": secret, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return whisper.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) ListUsersWithSecrets(ctx context.Context) ([]*whisper.User, error) {
	var models []UserModel
	if err := s.db.WithContext(ctx).Where("secret IS NOT NULL").Find(&models).Error; err != nil {
		return nil, err
	}

	users := make([]*whisper.User, len(models))
	for i, m := range models {
		users[i] = m.ToUser()
	}
	return users, nil
}

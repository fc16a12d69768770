package gorm

import (
	"time"

	"github.com/panyam/whisper"
)

// UserModel is the GORM model for users. Username and GoogleID are nullable
// so their unique indexes only bind when the attribute is present.
type UserModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Username     *string   `gorm:"uniqueIndex;size:64"`
	DisplayName  string    `gorm:"size:255"`
	PasswordHash string    `gorm:"size:128"`
	GoogleID     *string   `gorm:"uniqueIndex;size:64"`
	Secret       *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *whisper.User {
	user := &whisper.User{
		ID:           m.ID,
		DisplayName:  m.DisplayName,
		PasswordHash: m.PasswordHash,
		Secret:       m.Secret,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Username != nil {
		user.Username = *m.Username
	}
	if m.GoogleID != nil {
		user.GoogleID = *m.GoogleID
	}
	return user
}

func UserToModel(u *whisper.User) *UserModel {
	model := &UserModel{
		ID:           u.ID,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		Secret:       u.Secret,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.Username != "" {
		model.Username = &u.Username
	}
	if u.GoogleID != "" {
		model.GoogleID = &u.GoogleID
	}
	return model
}

package gorm_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	gormlib "gorm.io/gorm"

	"github.com/panyam/whisper"
	gormstore "github.com/panyam/whisper/stores/gorm"
)

// openTestStore connects to the database named by WHISPER_TEST_DB_DSN and
// starts from an empty users table. Tests are skipped when the variable is
// unset so the suite stays runnable without a database.
func openTestStore(t *testing.T) *gormstore.UserStore {
	t.Helper()

	dsn := os.Getenv("WHISPER_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("WHISPER_TEST_DB_DSN not set, skipping database tests")
	}

	db, err := gormlib.Open(postgres.Open(dsn), &gormlib.Config{TranslateError: true})
	require.NoError(t, err)

	store, err := gormstore.NewUserStore(db)
	require.NoError(t, err)

	require.NoError(t, db.Exec("DELETE FROM users").Error)
	return store
}

func TestCreateUserAndLookups(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	user := &whisper.User{
		ID:           whisper.NewUserID(),
		Username:     "alice",
		DisplayName:  "Alice",
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
	}
	require.NoError(t, store.CreateUser(ctx, user))

	byId, err := store.GetUserById(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byId.Username)
	assert.False(t, byId.HasSecret())

	byName, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, whisper.ErrUserNotFound)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := &whisper.User{ID: whisper.NewUserID(), Username: "bob", PasswordHash: "h"}
	require.NoError(t, store.CreateUser(ctx, first))

	dup := &whisper.User{ID: whisper.NewUserID(), Username: "bob", PasswordHash: "h"}
	err := store.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, whisper.ErrUsernameTaken)
}

func TestFindOrCreateByGoogleID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, created, err := store.FindOrCreateByGoogleID(ctx, "google-sub-1", "Carol")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "google-sub-1", first.GoogleID)

	second, created, err := store.FindOrCreateByGoogleID(ctx, "google-sub-1", "Carol Again")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Carol", second.DisplayName, "display name is set at creation only")
}

func TestSetSecretAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	withSecret := &whisper.User{ID: whisper.NewUserID(), Username: "dave", PasswordHash: "h"}
	withoutSecret := &whisper.User{ID: whisper.NewUserID(), Username: "eve", PasswordHash: "h"}
	require.NoError(t, store.CreateUser(ctx, withSecret))
	require.NoError(t, store.CreateUser(ctx, withoutSecret))

	require.NoError(t, store.SetSecret(ctx, withSecret.ID, "foo"))
	require.NoError(t, store.SetSecret(ctx, withSecret.ID, "bar"))

	users, err := store.ListUsersWithSecrets(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, withSecret.ID, users[0].ID)
	assert.Equal(t, "bar", *users[0].Secret)

	err = store.SetSecret(ctx, "no-such-id", "x")
	assert.ErrorIs(t, err, whisper.ErrUserNotFound)
}

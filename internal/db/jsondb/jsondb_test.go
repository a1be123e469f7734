package jsondb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/newsdigest/internal/db/storage"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

func newTestUser(email string) *user.User {
	u := user.New(email, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	u.Sources = []user.SourceRef{{Name: "Techcrunch", URL: "https://techcrunch.com"}}
	return u
}

func Test(t *testing.T) {
	t.Run("The base jsondb package test", func(t *testing.T) {
		dbFileName := filepath.Join(t.TempDir(), "users.json")

		theStorage, err := New(dbFileName)
		require.NoError(t, err)
		require.NotNil(t, theStorage)

		_, err = os.Stat(dbFileName)
		require.NoError(t, err, "New() should create the database file")

		_, err = theStorage.GetUser(context.Background(), "nobody@example.com")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)

		err = theStorage.SaveUser(context.Background(), newTestUser("b@example.com"))
		require.NoError(t, err)
		err = theStorage.SaveUser(context.Background(), newTestUser("a@example.com"))
		require.NoError(t, err)

		usr, err := theStorage.GetUser(context.Background(), "b@example.com")
		require.NoError(t, err)
		assert.Equal(t, newTestUser("b@example.com"), usr)

		users, err := theStorage.ListUsers(context.Background())
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "a@example.com", users[0].Email)
		assert.Equal(t, "b@example.com", users[1].Email)

		err = theStorage.DeleteUser(context.Background(), "b@example.com")
		require.NoError(t, err)
		err = theStorage.DeleteUser(context.Background(), "b@example.com")
		assert.NoError(t, err, "deleting an unknown user should not fail")

		assert.NoError(t, theStorage.Ping(context.Background()))
		assert.NoError(t, theStorage.Close())

		reopened, err := New(dbFileName)
		require.NoError(t, err)
		users, err = reopened.ListUsers(context.Background())
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, newTestUser("a@example.com"), users[0])
	})
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	theStorage, err := New("")
	require.NoError(t, err)

	original := newTestUser("a@example.com")
	require.NoError(t, theStorage.SaveUser(context.Background(), original))
	original.Sources = nil

	usr, err := theStorage.GetUser(context.Background(), "a@example.com")
	require.NoError(t, err)
	require.Len(t, usr.Sources, 1)

	usr.Timezone = "Europe/Paris"
	again, err := theStorage.GetUser(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.DefaultTimezone, again.Timezone)
}

func TestSaveIsPersistedImmediately(t *testing.T) {
	dbFileName := filepath.Join(t.TempDir(), "users.json")
	theStorage, err := New(dbFileName)
	require.NoError(t, err)

	require.NoError(t, theStorage.SaveUser(context.Background(), newTestUser("a@example.com")))

	data, err := os.ReadFile(dbFileName)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"a@example.com"`)
	assert.Contains(t, string(data), `"send_time": "08:00"`)
}

func TestNewRejectsCorruptFile(t *testing.T) {
	dbFileName := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(dbFileName, []byte("{not json"), 0644))

	_, err := New(dbFileName)
	assert.Error(t, err)
}

package sqlitedb

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/newsdigest/internal/db/storage"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

func openTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "digest.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestSaveAndGetUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.GetUser(ctx, "reader@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	usr := user.New("reader@example.com", time.Date(2025, time.February, 2, 9, 30, 0, 0, time.UTC))
	usr.Sources = []user.SourceRef{
		{Name: "Wired", URL: "https://www.wired.com"},
		{Name: "Techcrunch", URL: "https://techcrunch.com"},
		{Name: "Bbc", URL: "https://www.bbc.com"},
	}
	require.NoError(t, db.SaveUser(ctx, usr))

	got, err := db.GetUser(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, usr, got)
}

func TestSaveReplacesSources(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	usr := user.New("reader@example.com", time.Now())
	usr.Sources = []user.SourceRef{
		{Name: "Wired", URL: "https://www.wired.com"},
		{Name: "Bbc", URL: "https://www.bbc.com"},
	}
	require.NoError(t, db.SaveUser(ctx, usr))

	usr.Sources = []user.SourceRef{{Name: "Bbc", URL: "https://www.bbc.com"}}
	usr.SendTime = user.MustParseClock("19:05")
	usr.Timezone = "Asia/Tokyo"
	require.NoError(t, db.SaveUser(ctx, usr))

	got, err := db.GetUser(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, usr.Sources, got.Sources)
	assert.Equal(t, "19:05", got.SendTime.String())
	assert.Equal(t, "Asia/Tokyo", got.Timezone)
}

func TestListAndDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, email := range []string{"c@example.com", "a@example.com", "b@example.com"} {
		usr := user.New(email, time.Now())
		usr.Sources = []user.SourceRef{{Name: "Src", URL: "https://" + email}}
		require.NoError(t, db.SaveUser(ctx, usr))
	}

	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "a@example.com", users[0].Email)
	assert.Equal(t, "https://a@example.com", users[0].Sources[0].URL)
	assert.Equal(t, "c@example.com", users[2].Email)

	require.NoError(t, db.DeleteUser(ctx, "b@example.com"))
	require.NoError(t, db.DeleteUser(ctx, "b@example.com"))

	users, err = db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	assert.NoError(t, db.Ping(ctx))
}

func TestEveryConnectionGetsPragmas(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.database.SetMaxOpenConns(2)
	first, err := db.database.Conn(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := db.database.Conn(ctx)
	require.NoError(t, err)
	defer second.Close()

	for _, conn := range []*sql.Conn{first, second} {
		var foreignKeys, busyTimeout int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
		assert.Equal(t, 1, foreignKeys)
		assert.Equal(t, 5000, busyTimeout)
	}
}

func TestDataSourceName(t *testing.T) {
	dsn := dataSourceName("/var/lib/newsdigest/users.db")
	assert.True(t, strings.HasPrefix(dsn, "file:/var/lib/newsdigest/users.db?"))
	assert.Contains(t, dsn, "_pragma=foreign_keys%281%29")
}

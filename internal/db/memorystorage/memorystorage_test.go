package memorystorage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/newsdigest/internal/db/storage"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

func TestMemoryStorage(t *testing.T) {
	var theStorage storage.Storage
	theStorage, err := New()
	require.NoError(t, err)

	assert.NoError(t, theStorage.Ping(context.Background()))

	usr := user.New("reader@example.com", time.Now())
	require.NoError(t, theStorage.SaveUser(context.Background(), usr))

	got, err := theStorage.GetUser(context.Background(), "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, usr.Email, got.Email)

	require.NoError(t, theStorage.DeleteUser(context.Background(), "reader@example.com"))
	_, err = theStorage.GetUser(context.Background(), "reader@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	assert.NoError(t, theStorage.Close())
}

// Package mockstorage provides a testify-based mock implementation
// of the subscriber storage used by the service and router packages.
// It is used for unit testing by simulating storage behavior.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

// StorageMock is a testify mock that implements storage.Storage.
//
// Use it in service and router tests to simulate database behavior.
type StorageMock struct {
	mock.Mock

	// OnListUsers is an optional function field that can be assigned
	// to define custom mock behavior for ListUsers in tests.
	//
	// If set, ListUsers will delegate to this function instead of
	// using testify's generic mock handler.
	OnListUsers func(ctx context.Context) ([]*user.User, error)
}

// Ping mocks the pinger interface to simulate a health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// GetUser mocks loading a subscriber by email.
func (m *StorageMock) GetUser(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

// SaveUser mocks creating or replacing a subscriber.
func (m *StorageMock) SaveUser(ctx context.Context, usr *user.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

// DeleteUser mocks removing a subscriber.
func (m *StorageMock) DeleteUser(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// ListUsers mocks reading every subscriber.
func (m *StorageMock) ListUsers(ctx context.Context) ([]*user.User, error) {
	if m.OnListUsers != nil {
		return m.OnListUsers(ctx)
	}
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*user.User)
	return users, args.Error(1)
}

func (m *StorageMock) Close() error {
	return nil
}

// Package storage declares the subscriber store contract shared by every
// backend in internal/db.
package storage

import (
	"context"
	"errors"

	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

// ErrUserNotFound is returned by GetUser for an unknown email.
var ErrUserNotFound = errors.New("user not found")

// Storage is a per-key subscriber store. Every write is durable once the
// call returns. Implementations hand out copies, so callers may mutate the
// returned records freely.
type Storage interface {
	GetUser(ctx context.Context, email string) (*user.User, error)

	// SaveUser inserts or replaces the record keyed by its email.
	SaveUser(ctx context.Context, usr *user.User) error

	// DeleteUser removes the record. Deleting an unknown email is not an
	// error.
	DeleteUser(ctx context.Context, email string) error

	// ListUsers returns all records ordered by email.
	ListUsers(ctx context.Context) ([]*user.User, error)

	Ping(ctx context.Context) error

	Close() error
}

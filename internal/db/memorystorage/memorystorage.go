// Package memorystorage is a process-local subscriber store used when no
// file or database is configured.
package memorystorage

import (
	"context"

	"github.com/patric-chuzhbe/newsdigest/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	db, err := jsondb.New("")
	if err != nil {
		return nil, err
	}

	return &MemoryStorage{
		JSONDB: db,
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

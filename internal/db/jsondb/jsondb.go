// Package jsondb keeps subscribers in a single JSON file, an object keyed by
// email. The whole file is rewritten after every change.
package jsondb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/newsdigest/internal/db/storage"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

type Cache map[string]*user.User

type JSONDB struct {
	mu       sync.RWMutex
	fileName string
	Cache    Cache
}

func initDBFile(fileName string) error {
	if dir := filepath.Dir(fileName); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(fileName, []byte("{}\n"), 0644)
}

// writeToJSONFile replaces fileName atomically: the data goes to a temp file
// in the same directory which is then renamed over the original.
func writeToJSONFile(fileName string, cache Cache) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fileName), filepath.Base(fileName)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(jsonData); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("error writing to file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("error syncing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing file: %w", err)
	}

	if err := os.Rename(tmpName, fileName); err != nil {
		return fmt.Errorf("error replacing %s: %w", fileName, err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *Cache) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

// New opens fileName, creating an empty database when it does not exist.
// An empty fileName gives a purely in-memory database.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    Cache{},
	}
	if fileName == "" {
		return db, nil
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while parsing %s: %w", fileName, err)
		}
		if err := initDBFile(fileName); err != nil {
			return nil, err
		}
	}
	if db.Cache == nil {
		db.Cache = Cache{}
	}

	return db, nil
}

func (db *JSONDB) GetUser(ctx context.Context, email string) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, found := db.Cache[email]
	if !found {
		return nil, storage.ErrUserNotFound
	}

	return usr.Clone(), nil
}

func (db *JSONDB) SaveUser(ctx context.Context, usr *user.User) error {
	if usr == nil || usr.Email == "" {
		return errors.New("cannot save a user without email")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	previous, existed := db.Cache[usr.Email]
	db.Cache[usr.Email] = usr.Clone()
	if err := db.persist(); err != nil {
		if existed {
			db.Cache[usr.Email] = previous
		} else {
			delete(db.Cache, usr.Email)
		}
		return err
	}

	return nil
}

func (db *JSONDB) DeleteUser(ctx context.Context, email string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	previous, existed := db.Cache[email]
	if !existed {
		return nil
	}
	delete(db.Cache, email)
	if err := db.persist(); err != nil {
		db.Cache[email] = previous
		return err
	}

	return nil
}

func (db *JSONDB) ListUsers(ctx context.Context) ([]*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	emails := funk.Keys(db.Cache).([]string)
	sort.Strings(emails)

	result := make([]*user.User, 0, len(emails))
	for _, email := range emails {
		result = append(result, db.Cache[email].Clone())
	}

	return result, nil
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

func (db *JSONDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.persist()
}

func (db *JSONDB) persist() error {
	if db.fileName == "" {
		return nil
	}
	return writeToJSONFile(db.fileName, db.Cache)
}

// Package sqlitedb stores subscribers in an embedded SQLite database using
// the pure-Go modernc driver. Migrations are embedded in the binary.
package sqlitedb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/patric-chuzhbe/newsdigest/internal/db/storage"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type SQLiteDB struct {
	database *sql.DB
}

// New opens (or creates) the database at path and runs the embedded
// migrations.
func New(ctx context.Context, path string) (*SQLiteDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	database, err := sql.Open("sqlite", dataSourceName(path))
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine.
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)
	database.SetConnMaxLifetime(0)

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/New(): open %s: %w", path, err)
	}
	if err := migrate(ctx, database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/New(): migrations: %w", err)
	}

	return &SQLiteDB{database: database}, nil
}

// connectionPragmas are applied by the driver to every connection it opens,
// so a replaced pool connection keeps foreign keys and the busy timeout.
var connectionPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

func dataSourceName(path string) string {
	query := url.Values{"_pragma": connectionPragmas}
	return (&url.URL{Scheme: "file", Opaque: path, RawQuery: query.Encode()}).String()
}

func migrate(ctx context.Context, database *sql.DB) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, database, migrations)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

func (db *SQLiteDB) GetUser(ctx context.Context, email string) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT email, timezone, send_time, created_at FROM users WHERE email = ?`,
		email,
	)
	usr, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}

	sources, err := db.loadSources(ctx, `WHERE email = ?`, email)
	if err != nil {
		return nil, err
	}
	usr.Sources = append(usr.Sources, sources[email]...)

	return usr, nil
}

func (db *SQLiteDB) SaveUser(ctx context.Context, usr *user.User) error {
	if usr == nil || usr.Email == "" {
		return errors.New("cannot save a user without email")
	}

	tx, err := db.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	created := usr.CreatedAt.UTC().Unix()
	if usr.CreatedAt.IsZero() {
		created = time.Now().UTC().Unix()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (email, timezone, send_time, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			timezone = excluded.timezone,
			send_time = excluded.send_time`,
		usr.Email, usr.Timezone, usr.SendTime.String(), created,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_sources WHERE email = ?`, usr.Email); err != nil {
		return fmt.Errorf("clear sources: %w", err)
	}

	for i, source := range usr.Sources {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO user_sources (email, position, name, url) VALUES (?, ?, ?, ?)`,
			usr.Email, i, source.Name, source.URL,
		)
		if err != nil {
			return fmt.Errorf("insert source %s: %w", source.URL, err)
		}
	}

	return tx.Commit()
}

func (db *SQLiteDB) DeleteUser(ctx context.Context, email string) error {
	_, err := db.database.ExecContext(ctx, `DELETE FROM users WHERE email = ?`, email)
	return err
}

func (db *SQLiteDB) ListUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT email, timezone, send_time, created_at FROM users ORDER BY email`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*user.User
	for rows.Next() {
		usr, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, usr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sources, err := db.loadSources(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, usr := range result {
		usr.Sources = append(usr.Sources, sources[usr.Email]...)
	}

	return result, nil
}

func (db *SQLiteDB) Ping(ctx context.Context) error {
	return db.database.PingContext(ctx)
}

func (db *SQLiteDB) Close() error {
	return db.database.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var (
		usr      user.User
		sendTime string
		created  int64
	)
	if err := row.Scan(&usr.Email, &usr.Timezone, &sendTime, &created); err != nil {
		return nil, err
	}
	clock, err := user.ParseClock(sendTime)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", usr.Email, err)
	}
	usr.SendTime = clock
	usr.CreatedAt = time.Unix(created, 0).UTC()
	usr.Sources = []user.SourceRef{}

	return &usr, nil
}

func (db *SQLiteDB) loadSources(ctx context.Context, where string, args ...any) (map[string][]user.SourceRef, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT email, name, url FROM user_sources `+where+` ORDER BY email, position`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string][]user.SourceRef{}
	for rows.Next() {
		var email string
		var source user.SourceRef
		if err := rows.Scan(&email, &source.Name, &source.URL); err != nil {
			return nil, err
		}
		result[email] = append(result[email], source)
	}

	return result, rows.Err()
}

// Package postgresdb provides a PostgreSQL-based implementation of the storage interface
// for persisting and retrieving subscribers and their ordered source lists.
// Schema changes are applied with goose migrations on startup.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/patric-chuzhbe/newsdigest/internal/db/storage"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

// PostgresDB is a PostgreSQL-backed subscriber store.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type initOptions struct {
	DBPreReset bool
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
// Optionally accepts initialization options, such as WithDBPreReset.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			_ = database.Close()
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		_ = database.Close()
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.UpContext(ctx, result.database, migrationsDir); err != nil {
		_ = database.Close()
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

// GetUser loads one subscriber with its sources in list order.
func (db *PostgresDB) GetUser(ctx context.Context, email string) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT email, timezone, send_time, created_at FROM users WHERE email = $1`,
		email,
	)
	usr, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}

	sources, err := db.loadSources(ctx, db.database, `WHERE email = $1`, email)
	if err != nil {
		return nil, err
	}
	usr.Sources = append(usr.Sources, sources[email]...)

	return usr, nil
}

// SaveUser upserts the subscriber row and replaces its source list within a
// single transaction.
func (db *PostgresDB) SaveUser(ctx context.Context, usr *user.User) error {
	if usr == nil || usr.Email == "" {
		return errors.New("cannot save a user without email")
	}

	transaction, err := db.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = transaction.Rollback()
	}()

	_, err = transaction.ExecContext(
		ctx,
		`
			INSERT INTO users (email, timezone, send_time, created_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (email) DO UPDATE
				SET
					timezone = EXCLUDED.timezone,
					send_time = EXCLUDED.send_time
		`,
		usr.Email,
		usr.Timezone,
		usr.SendTime.String(),
		creationTime(usr, time.Now()),
	)
	if err != nil {
		return fmt.Errorf("in internal/db/postgresdb/postgresdb.go/SaveUser(): error while upserting user: %w", err)
	}

	_, err = transaction.ExecContext(ctx, `DELETE FROM user_sources WHERE email = $1`, usr.Email)
	if err != nil {
		return fmt.Errorf("in internal/db/postgresdb/postgresdb.go/SaveUser(): error while clearing sources: %w", err)
	}

	if len(usr.Sources) > 0 {
		placeholders := make([]string, len(usr.Sources))
		params := make([]interface{}, 0, len(usr.Sources)*4)
		for i, source := range usr.Sources {
			placeholders[i] = fmt.Sprintf("($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4)
			params = append(params, usr.Email, i, source.Name, source.URL)
		}
		_, err = transaction.ExecContext(
			ctx,
			fmt.Sprintf(
				`INSERT INTO user_sources (email, position, name, url) VALUES %s`,
				strings.Join(placeholders, ","),
			),
			params...,
		)
		if err != nil {
			return fmt.Errorf("in internal/db/postgresdb/postgresdb.go/SaveUser(): error while inserting sources: %w", err)
		}
	}

	return transaction.Commit()
}

// creationTime is the created_at value stored for usr. Records built
// without a creation time are stamped with now.
func creationTime(usr *user.User, now time.Time) time.Time {
	if usr.CreatedAt.IsZero() {
		return now.UTC()
	}
	return usr.CreatedAt.UTC()
}

// DeleteUser removes the subscriber; sources go with it by cascade.
func (db *PostgresDB) DeleteUser(ctx context.Context, email string) error {
	_, err := db.database.ExecContext(ctx, `DELETE FROM users WHERE email = $1`, email)
	return err
}

// ListUsers returns every subscriber ordered by email.
func (db *PostgresDB) ListUsers(ctx context.Context) ([]*user.User, error) {
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

	sources, err := db.loadSources(ctx, db.database, "")
	if err != nil {
		return nil, err
	}
	for _, usr := range result {
		usr.Sources = append(usr.Sources, sources[usr.Email]...)
	}

	return result, nil
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables resetting the database schema before migration.
// It can be used for test setups or development purposes.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var (
		usr      user.User
		sendTime string
	)
	if err := row.Scan(&usr.Email, &usr.Timezone, &sendTime, &usr.CreatedAt); err != nil {
		return nil, err
	}
	clock, err := user.ParseClock(sendTime)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", usr.Email, err)
	}
	usr.SendTime = clock
	usr.CreatedAt = usr.CreatedAt.UTC()
	usr.Sources = []user.SourceRef{}

	return &usr, nil
}

func (db *PostgresDB) loadSources(
	ctx context.Context,
	database queryer,
	where string,
	args ...interface{},
) (map[string][]user.SourceRef, error) {
	rows, err := database.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT email, name, url FROM user_sources %s ORDER BY email, position`, where),
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

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}

// Package postgres keeps group counters and play history in PostgreSQL.
//
// Tables live in a dedicated schema (the namespace) and are created lazily:
// the first statement that hits a missing relation runs Setup and retries once.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/okian/playstats/internal/adapters/repository"
)

// DefaultNamespace is the schema used when none is configured.
const DefaultNamespace = "playstats"

const codeUndefinedTable = "42P01"

// ErrRelationNotFound is returned as equivalent to the Postgres error.
var ErrRelationNotFound = errors.New("relation not found")

var validNamespace = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

const (
	pgCreateSchema = `CREATE SCHEMA IF NOT EXISTS %s`

	pgCreateCounters = `
		CREATE TABLE IF NOT EXISTS %s.group_counters(
			group_id BIGINT NOT NULL PRIMARY KEY,
			count BIGINT NOT NULL CHECK (count >= 0),
			created_at TIMESTAMP WITHOUT TIME ZONE DEFAULT (now() AT TIME ZONE 'utc'),
			updated_at TIMESTAMP WITHOUT TIME ZONE DEFAULT (now() AT TIME ZONE 'utc')
		)`
	pgIndexCountersRank = `
		CREATE INDEX IF NOT EXISTS group_counters_rank
		ON %s.group_counters
		USING btree(count DESC, group_id ASC)`

	pgCreatePlays = `
		CREATE TABLE IF NOT EXISTS %s.plays(
			id TEXT NOT NULL PRIMARY KEY,
			group_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			song_title TEXT NOT NULL,
			played_at TIMESTAMP WITHOUT TIME ZONE NOT NULL
		)`
	pgIndexPlaysGroup = `
		CREATE INDEX IF NOT EXISTS plays_group_played
		ON %s.plays
		USING btree(group_id, played_at DESC)`

	pgDropCounters = `DROP TABLE IF EXISTS %s.group_counters CASCADE`
	pgDropPlays    = `DROP TABLE IF EXISTS %s.plays CASCADE`
)

// Connect opens and pings a connection pool for url.
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, repository.Unavailable("postgres.connect", err)
	}
	return db, nil
}

// CheckNamespace rejects schema names that are not plain identifiers.
func CheckNamespace(ns string) error {
	if !validNamespace.MatchString(ns) {
		return fmt.Errorf("postgres namespace %q: %w", ns, repository.ErrInvalidArgument)
	}
	return nil
}

// Setup creates the schema, tables and indexes of ns. It is idempotent.
func Setup(ctx context.Context, db *sqlx.DB, ns string) error {
	for _, q := range []string{
		fmt.Sprintf(pgCreateSchema, ns),
		fmt.Sprintf(pgCreateCounters, ns),
		fmt.Sprintf(pgIndexCountersRank, ns),
		fmt.Sprintf(pgCreatePlays, ns),
		fmt.Sprintf(pgIndexPlaysGroup, ns),
	} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return repository.Unavailable("postgres.setup", fmt.Errorf("setup '%s': %w", q, err))
		}
	}
	return nil
}

// Teardown drops every table of ns.
func Teardown(ctx context.Context, db *sqlx.DB, ns string) error {
	for _, q := range []string{
		fmt.Sprintf(pgDropCounters, ns),
		fmt.Sprintf(pgDropPlays, ns),
	} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return repository.Unavailable("postgres.teardown", fmt.Errorf("teardown '%s': %w", q, err))
		}
	}
	return nil
}

// wrapError maps an undefined table error to ErrRelationNotFound and leaves
// everything else untouched.
func wrapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeUndefinedTable {
		return ErrRelationNotFound
	}
	return err
}

// withSetup runs fn, and when the tables are missing runs Setup and retries.
func withSetup(ctx context.Context, db *sqlx.DB, ns string, fn func() error) error {
	err := fn()
	if err != nil && errors.Is(wrapError(err), ErrRelationNotFound) {
		if err := Setup(ctx, db, ns); err != nil {
			return err
		}
		err = fn()
	}
	return err
}

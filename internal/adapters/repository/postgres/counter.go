package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/model"
)

const (
	pgIncrement = `
		INSERT INTO %s.group_counters AS c (group_id, count)
		VALUES ($1, 1)
		ON CONFLICT (group_id) DO
		UPDATE SET
			count = c.count + 1,
			updated_at = (now() AT TIME ZONE 'utc')
		RETURNING count`
	pgGetCounter = `
		SELECT
			count
		FROM
			%s.group_counters
		WHERE
			group_id = $1`
	pgListCounters = `
		SELECT
			group_id, count
		FROM
			%s.group_counters
		WHERE
			count > 0
		ORDER BY
			count DESC, group_id ASC`
	pgListCountersLimit = pgListCounters + `
		LIMIT
			$1`
)

type counterRow struct {
	GroupID int64 `db:"group_id"`
	Count   int64 `db:"count"`
}

// Store is a repository.OrderedStore backed by one row per group. Increments
// are a single upsert, so concurrent writers never lose an update.
type Store struct {
	db *sqlx.DB
	ns string
}

var _ repository.OrderedStore = (*Store)(nil)

// NewStore returns a Store using tables in schema ns.
func NewStore(db *sqlx.DB, ns string) (*Store, error) {
	if err := CheckNamespace(ns); err != nil {
		return nil, err
	}
	return &Store{db: db, ns: ns}, nil
}

func (s *Store) Increment(ctx context.Context, group model.GroupID) (int64, error) {
	if err := group.Validate(); err != nil {
		return 0, err
	}

	var (
		query = fmt.Sprintf(pgIncrement, s.ns)
		count int64
	)
	err := withSetup(ctx, s.db, s.ns, func() error {
		return s.db.GetContext(ctx, &count, query, int64(group))
	})
	if err != nil {
		return 0, repository.Unavailable("postgres.increment", err)
	}
	return count, nil
}

func (s *Store) Get(ctx context.Context, group model.GroupID) (int64, error) {
	if err := group.Validate(); err != nil {
		return 0, err
	}

	var (
		query = fmt.Sprintf(pgGetCounter, s.ns)
		count int64
	)
	err := withSetup(ctx, s.db, s.ns, func() error {
		return s.db.GetContext(ctx, &count, query, int64(group))
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, repository.Unavailable("postgres.get", err)
	}
	return count, nil
}

func (s *Store) Snapshot(ctx context.Context) ([]model.GroupCounter, error) {
	return s.Ordered(ctx, 0)
}

// Ordered lets the database rank; limit <= 0 returns every group.
func (s *Store) Ordered(ctx context.Context, limit int) ([]model.GroupCounter, error) {
	var (
		query = fmt.Sprintf(pgListCounters, s.ns)
		args  []interface{}
		rows  []counterRow
	)
	if limit > 0 {
		query = fmt.Sprintf(pgListCountersLimit, s.ns)
		args = append(args, limit)
	}

	err := withSetup(ctx, s.db, s.ns, func() error {
		rows = rows[:0]
		return s.db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		return nil, repository.Unavailable("postgres.ordered", err)
	}

	out := make([]model.GroupCounter, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.GroupCounter{GroupID: model.GroupID(r.GroupID), Count: r.Count})
	}
	return out, nil
}

// Close closes the connection pool, shared with any History on it.
func (s *Store) Close() error {
	return s.db.Close()
}

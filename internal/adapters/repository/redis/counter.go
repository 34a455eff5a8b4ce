package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/gomodule/redigo/redis"

	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/model"
)

// Store is a repository.Store over a single hash mapping group id to count.
// HINCRBY is atomic on the server, so increments never race. Redis cannot
// rank the hash with the group id tie-break, hence Store is not ordered.
type Store struct {
	pool *redis.Pool
	key  string
}

var _ repository.Store = (*Store)(nil)

// NewStore returns a Store writing under prefix.
func NewStore(pool *redis.Pool, prefix string) *Store {
	return &Store{pool: pool, key: prefix + ":group_counts"}
}

func (s *Store) do(ctx context.Context, op, cmd string, args ...interface{}) (interface{}, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, repository.Unavailable(op, err)
	}
	defer conn.Close()

	reply, err := redis.DoContext(conn, ctx, cmd, args...)
	if err != nil && !errors.Is(err, redis.ErrNil) {
		return nil, repository.Unavailable(op, err)
	}
	return reply, nil
}

func (s *Store) Increment(ctx context.Context, group model.GroupID) (int64, error) {
	if err := group.Validate(); err != nil {
		return 0, err
	}

	reply, err := s.do(ctx, "redis.increment", commandHIncrBy, s.key, group.String(), 1)
	if err != nil {
		return 0, err
	}
	n, err := redis.Int64(reply, nil)
	if err != nil {
		return 0, repository.Unavailable("redis.increment", err)
	}
	return n, nil
}

func (s *Store) Get(ctx context.Context, group model.GroupID) (int64, error) {
	if err := group.Validate(); err != nil {
		return 0, err
	}

	reply, err := s.do(ctx, "redis.get", commandHGet, s.key, group.String())
	if err != nil {
		return 0, err
	}
	if reply == nil {
		return 0, nil
	}
	n, err := redis.Int64(reply, nil)
	if err != nil {
		return 0, repository.Unavailable("redis.get", err)
	}
	return n, nil
}

// Snapshot reads the whole hash; fields that are not group ids are skipped.
func (s *Store) Snapshot(ctx context.Context) ([]model.GroupCounter, error) {
	reply, err := s.do(ctx, "redis.snapshot", commandHGetAll, s.key)
	if err != nil {
		return nil, err
	}
	values, err := redis.Int64Map(reply, nil)
	if err != nil {
		return nil, repository.Unavailable("redis.snapshot", err)
	}

	out := make([]model.GroupCounter, 0, len(values))
	for field, count := range values {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil || id == 0 || count < 1 {
			continue
		}
		out = append(out, model.GroupCounter{GroupID: model.GroupID(id), Count: count})
	}
	return out, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

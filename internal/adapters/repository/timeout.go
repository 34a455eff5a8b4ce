package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/playstats/internal/domain/model"
)

type timeoutStore struct {
	timeout time.Duration
	next    Store
}

type timeoutOrderedStore struct {
	timeoutStore
	ordered OrderedStore
}

// TimeoutMiddleware bounds every call with d. An expired deadline surfaces
// as ErrStorageUnavailable. A non-positive d disables the bound.
func TimeoutMiddleware(d time.Duration) StoreMiddleware {
	return func(next Store) Store {
		if d <= 0 {
			return next
		}
		base := timeoutStore{timeout: d, next: next}
		if o, ok := next.(OrderedStore); ok {
			return &timeoutOrderedStore{timeoutStore: base, ordered: o}
		}
		return &base
	}
}

// bound converts errors caused by the expired deadline into outages.
func (s *timeoutStore) bound(ctx context.Context, op string, err error) error {
	if err == nil || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	if ctx.Err() != nil {
		return Unavailable(op, err)
	}
	return err
}

func (s *timeoutStore) Increment(ctx context.Context, group model.GroupID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.next.Increment(ctx, group)
	return n, s.bound(ctx, "increment", err)
}

func (s *timeoutStore) Get(ctx context.Context, group model.GroupID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.next.Get(ctx, group)
	return n, s.bound(ctx, "get", err)
}

func (s *timeoutStore) Snapshot(ctx context.Context) ([]model.GroupCounter, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	list, err := s.next.Snapshot(ctx)
	return list, s.bound(ctx, "snapshot", err)
}

func (s *timeoutStore) Unwrap() Store { return s.next }

// Close forwards to the wrapped store when it holds resources.
func (s *timeoutStore) Close() error {
	if c, ok := s.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (s *timeoutOrderedStore) Ordered(ctx context.Context, limit int) ([]model.GroupCounter, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	list, err := s.ordered.Ordered(ctx, limit)
	return list, s.bound(ctx, "ordered", err)
}

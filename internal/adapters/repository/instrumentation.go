package repository

import (
	"context"
	"time"

	"github.com/okian/playstats/internal/domain/model"
	"github.com/okian/playstats/pkg/metrics"
)

type instrumentStore struct {
	backend string
	next    Store
}

type instrumentOrderedStore struct {
	instrumentStore
	ordered OrderedStore
}

// InstrumentMiddleware observes latency and failures of every Store call
// and exposes them as Prometheus metrics labelled with backend. The ordered
// capability of the wrapped store is preserved.
func InstrumentMiddleware(backend string) StoreMiddleware {
	return func(next Store) Store {
		base := instrumentStore{backend: backend, next: next}
		if o, ok := next.(OrderedStore); ok {
			return &instrumentOrderedStore{instrumentStore: base, ordered: o}
		}
		return &base
	}
}

func (s *instrumentStore) track(op string, begin time.Time, err error) {
	metrics.RecordStorageLatency(s.backend, op, float64(time.Since(begin).Microseconds())/1000)
	if err != nil {
		metrics.RecordStorageError(s.backend, op)
	}
}

func (s *instrumentStore) Increment(ctx context.Context, group model.GroupID) (count int64, err error) {
	defer func(begin time.Time) { s.track("increment", begin, err) }(time.Now())
	return s.next.Increment(ctx, group)
}

func (s *instrumentStore) Get(ctx context.Context, group model.GroupID) (count int64, err error) {
	defer func(begin time.Time) { s.track("get", begin, err) }(time.Now())
	return s.next.Get(ctx, group)
}

func (s *instrumentStore) Snapshot(ctx context.Context) (list []model.GroupCounter, err error) {
	defer func(begin time.Time) { s.track("snapshot", begin, err) }(time.Now())
	return s.next.Snapshot(ctx)
}

// Unwrap returns the wrapped store.
func (s *instrumentStore) Unwrap() Store { return s.next }

// Close forwards to the wrapped store when it holds resources.
func (s *instrumentStore) Close() error {
	if c, ok := s.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (s *instrumentOrderedStore) Ordered(ctx context.Context, limit int) (list []model.GroupCounter, err error) {
	defer func(begin time.Time) { s.track("ordered", begin, err) }(time.Now())
	return s.ordered.Ordered(ctx, limit)
}

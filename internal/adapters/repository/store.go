// Package repository defines the counter store contract, its errors and the
// in-memory treap implementation. Durable backends live in subpackages.
package repository

import (
	"context"

	"github.com/okian/playstats/internal/domain/model"
)

// Store is the durable mapping from group to play count.
//
// Implementations must make Increment atomic per group: concurrent calls for
// the same group never lose an update.
type Store interface {
	// Increment adds one play to group, creating the entry at 1 when absent,
	// and returns the new count.
	Increment(ctx context.Context, group model.GroupID) (int64, error)

	// Get returns the current count, 0 when the group was never seen.
	Get(ctx context.Context, group model.GroupID) (int64, error)

	// Snapshot returns every group with a nonzero count in no particular order.
	Snapshot(ctx context.Context) ([]model.GroupCounter, error)
}

// OrderedStore is implemented by backends able to return groups already
// ranked by count desc, group id asc.
type OrderedStore interface {
	Store

	// Ordered returns up to limit ranked counters; limit <= 0 returns all.
	Ordered(ctx context.Context, limit int) ([]model.GroupCounter, error)
}

// StoreMiddleware is a chainable behaviour modifier for Store.
type StoreMiddleware func(Store) Store

// Len reports how many groups s tracks when s, or a store it wraps, keeps
// them in memory. Middlewares are looked through via Unwrap.
func Len(s Store) (int, bool) {
	for s != nil {
		if l, ok := s.(interface{ Len() int }); ok {
			return l.Len(), true
		}
		u, ok := s.(interface{ Unwrap() Store })
		if !ok {
			return 0, false
		}
		s = u.Unwrap()
	}
	return 0, false
}

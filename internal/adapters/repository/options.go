package repository

import "github.com/okian/playstats/internal/domain/model"

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithSeed fixes the treap priority sequence, useful for reproducible layouts.
func WithSeed(seed uint64) Option {
	return func(s *TreapStore) {
		s.seed = seed
	}
}

// WithCounters preloads counters; entries with a count below 1 are ignored.
func WithCounters(counters ...model.GroupCounter) Option {
	return func(s *TreapStore) {
		s.preload = append(s.preload, counters...)
	}
}

// Package dedupe tracks play event ids so a redelivered event is counted once.
package dedupe

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
)

// DefaultMaxSize bounds the remembered ids when no size is configured.
const DefaultMaxSize = 50000

// Deduper records seen event ids.
type Deduper interface {
	// SeenAndRecord reports whether id was already seen, recording it if not.
	// The check and the insert happen atomically.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a later delivery is accepted again. Used when
	// an event was recorded but could not be queued.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// memory keeps the most recently used ids in an LRU; the least recently
// seen id is forgotten first once the bound is hit.
type memory struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// New returns an in-memory Deduper.
func New(opts ...Option) Deduper {
	cfg := config{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxSize < 0 {
		cfg.maxSize = 0
	}
	return &memory{cache: lru.New(cfg.maxSize)}
}

func (d *memory) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.cache.Get(id); ok {
		return true
	}
	d.cache.Add(id, struct{}{})
	return false
}

func (d *memory) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	d.cache.Remove(id)
	d.mu.Unlock()
}

func (d *memory) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.cache.Len())
}

package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/playstats/internal/domain/model"
	"github.com/okian/playstats/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: count DESC, then group id ASC (deterministic). "less" means
// ranks earlier, so an in-order traversal yields the leaderboard from best
// to worst.

type node struct {
	id    model.GroupID
	count int64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aCount, aID) should appear before (bCount, bID).
func less(aCount int64, aID model.GroupID, bCount int64, bID model.GroupID) bool {
	if aCount != bCount {
		return aCount > bCount
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id model.GroupID, count int64, prio uint64) *node {
	if n == nil {
		return &node{id: id, count: count, prio: prio, size: 1}
	}
	if less(count, id, n.count, n.id) {
		n.left = insert(n.left, id, count, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, count, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id model.GroupID, count int64) *node {
	if n == nil {
		return nil
	}
	switch {
	case count == n.count && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, count)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, count)
		}
	case less(count, id, n.count, n.id):
		n.left = deleteNode(n.left, id, count)
	default:
		n.right = deleteNode(n.right, id, count)
	}
	fix(n)
	return n
}

// collect appends up to limit counters in rank order.
func collect(n *node, limit int, out *[]model.GroupCounter) {
	if n == nil || len(*out) >= limit {
		return
	}
	collect(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, model.GroupCounter{GroupID: n.id, Count: n.count})
	}
	if len(*out) < limit {
		collect(n.right, limit, out)
	}
}

// TreapStore keeps counters in a map for point lookups and in a treap for
// ranked reads. A single short critical section covers both, so increments
// are atomic per group and never block on I/O.
type TreapStore struct {
	mu   sync.RWMutex
	root *node
	byID map[model.GroupID]int64
	rng  *rand.Rand

	seed    uint64
	preload []model.GroupCounter

	unavailable atomic.Bool
}

var _ OrderedStore = (*TreapStore)(nil)

// NewTreapStore constructs an empty in-memory store.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byID: make(map[model.GroupID]int64),
		seed: uint64(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))

	for _, c := range s.preload {
		if c.Count < 1 || c.GroupID.Validate() != nil {
			continue
		}
		if old, ok := s.byID[c.GroupID]; ok {
			s.root = deleteNode(s.root, c.GroupID, old)
		}
		s.byID[c.GroupID] = c.Count
		s.root = insert(s.root, c.GroupID, c.Count, s.rng.Uint64())
	}
	s.preload = nil

	metrics.UpdateTrackedGroups(len(s.byID))
	return s
}

// SetAvailable toggles simulated storage availability. While unavailable
// every operation fails with ErrStorageUnavailable and changes nothing.
func (s *TreapStore) SetAvailable(ok bool) {
	s.unavailable.Store(!ok)
}

func (s *TreapStore) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return Unavailable(op, err)
	}
	if s.unavailable.Load() {
		return Unavailable(op, errOffline)
	}
	return nil
}

// Increment implements Store.Increment in O(log n) expected time.
func (s *TreapStore) Increment(ctx context.Context, group model.GroupID) (int64, error) {
	if err := group.Validate(); err != nil {
		return 0, err
	}
	if err := s.check(ctx, "memory.increment"); err != nil {
		return 0, err
	}

	s.mu.Lock()
	old, existed := s.byID[group]
	if existed {
		s.root = deleteNode(s.root, group, old)
	}
	next := old + 1
	s.byID[group] = next
	s.root = insert(s.root, group, next, s.rng.Uint64())
	tracked := len(s.byID)
	s.mu.Unlock()

	if !existed {
		metrics.UpdateTrackedGroups(tracked)
	}
	return next, nil
}

// Get implements Store.Get.
func (s *TreapStore) Get(ctx context.Context, group model.GroupID) (int64, error) {
	if err := group.Validate(); err != nil {
		return 0, err
	}
	if err := s.check(ctx, "memory.get"); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[group], nil
}

// Snapshot implements Store.Snapshot; the result happens to be ranked.
func (s *TreapStore) Snapshot(ctx context.Context) ([]model.GroupCounter, error) {
	return s.Ordered(ctx, 0)
}

// Ordered implements OrderedStore.Ordered via in-order traversal.
func (s *TreapStore) Ordered(ctx context.Context, limit int) ([]model.GroupCounter, error) {
	if err := s.check(ctx, "memory.ordered"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := nsize(s.root)
	if limit <= 0 || limit > total {
		limit = total
	}
	out := make([]model.GroupCounter, 0, limit)
	collect(s.root, limit, &out)
	return out, nil
}

// Len returns the number of tracked groups.
func (s *TreapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close implements io.Closer; the memory store holds no resources.
func (s *TreapStore) Close() error {
	return nil
}

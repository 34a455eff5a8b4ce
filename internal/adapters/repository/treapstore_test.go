package repository

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/playstats/internal/domain/model"
)

func TestTreapStore_GetBeforeIncrement(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	for _, g := range []model.GroupID{1, -1, -1001234567890} {
		n, err := store.Get(ctx, g)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 0 {
			t.Errorf("group %d: expected 0, got %d", g, n)
		}
	}

	list, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty snapshot, got %v", list)
	}
}

func TestTreapStore_SequentialIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()
	const group = model.GroupID(-100)

	for i := int64(1); i <= 3; i++ {
		n, err := store.Increment(ctx, group)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != i {
			t.Errorf("increment %d returned %d", i, n)
		}
	}

	n, err := store.Get(ctx, group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

func TestTreapStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	const (
		groups       = 8
		perGroup     = 10 // goroutines per group
		perGoroutine = 50
	)

	var wg sync.WaitGroup
	for g := 1; g <= groups; g++ {
		for w := 0; w < perGroup; w++ {
			wg.Add(1)
			go func(g model.GroupID) {
				defer wg.Done()
				for i := 0; i < perGoroutine; i++ {
					if _, err := store.Increment(ctx, g); err != nil {
						t.Errorf("increment: %v", err)
						return
					}
				}
			}(model.GroupID(g))
		}
	}
	wg.Wait()

	for g := 1; g <= groups; g++ {
		n, err := store.Get(ctx, model.GroupID(g))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != perGroup*perGoroutine {
			t.Errorf("group %d: expected %d, got %d", g, perGroup*perGoroutine, n)
		}
	}
	if store.Len() != groups {
		t.Errorf("expected %d groups, got %d", groups, store.Len())
	}
}

func TestTreapStore_OrderingAndTieBreak(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(WithCounters(
		model.GroupCounter{GroupID: 30, Count: 5},
		model.GroupCounter{GroupID: 10, Count: 9},
		model.GroupCounter{GroupID: 20, Count: 5},
		model.GroupCounter{GroupID: -5, Count: 2},
		model.GroupCounter{GroupID: 40, Count: 0},
	))

	got, err := store.Ordered(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []model.GroupCounter{
		{GroupID: 10, Count: 9},
		{GroupID: 20, Count: 5},
		{GroupID: 30, Count: 5},
		{GroupID: -5, Count: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	top2, err := store.Ordered(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top2) != 2 || top2[0] != want[0] || top2[1] != want[1] {
		t.Errorf("unexpected top 2: %v", top2)
	}

	// Group 30 overtakes group 20 after one more play.
	if _, err := store.Increment(ctx, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = store.Ordered(ctx, 3)
	if got[1].GroupID != 30 || got[1].Count != 6 || got[2].GroupID != 20 {
		t.Errorf("unexpected order after increment: %v", got)
	}
}

func TestTreapStore_MatchesReferenceSort(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(WithSeed(42))
	ref := map[model.GroupID]int64{}
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		g := model.GroupID(r.Intn(120) - 60)
		if g == 0 {
			continue
		}
		if _, err := store.Increment(ctx, g); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ref[g]++
	}

	want := make([]model.GroupCounter, 0, len(ref))
	for g, c := range ref {
		want = append(want, model.GroupCounter{GroupID: g, Count: c})
	}
	sort.Slice(want, func(i, j int) bool {
		return less(want[i].Count, want[i].GroupID, want[j].Count, want[j].GroupID)
	})

	got, err := store.Ordered(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	checkTreap(t, store.root)
}

// checkTreap verifies subtree sizes and the max-heap property on priorities.
func checkTreap(t *testing.T, n *node) int {
	t.Helper()
	if n == nil {
		return 0
	}
	if n.left != nil && n.left.prio > n.prio {
		t.Fatalf("heap property violated at %d", n.id)
	}
	if n.right != nil && n.right.prio > n.prio {
		t.Fatalf("heap property violated at %d", n.id)
	}
	size := 1 + checkTreap(t, n.left) + checkTreap(t, n.right)
	if size != n.size {
		t.Fatalf("size mismatch at %d: stored %d, actual %d", n.id, n.size, size)
	}
	return size
}

func TestTreapStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()
	const group = model.GroupID(-7)

	if _, err := store.Increment(ctx, group); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.SetAvailable(false)
	if _, err := store.Increment(ctx, group); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := store.Get(ctx, group); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := store.Ordered(ctx, 1); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	store.SetAvailable(true)
	n, err := store.Increment(ctx, group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("failed attempt must contribute nothing: expected 2, got %d", n)
	}
}

func TestTreapStore_InvalidAndCancelled(t *testing.T) {
	store := NewTreapStore()

	if _, err := store.Increment(context.Background(), 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := store.Get(context.Background(), 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Increment(ctx, 1); !IsUnavailable(err) {
		t.Errorf("expected unavailable on cancelled context, got %v", err)
	}
	if n, _ := store.Get(context.Background(), 1); n != 0 {
		t.Errorf("cancelled increment must not apply, got %d", n)
	}
	if err := store.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

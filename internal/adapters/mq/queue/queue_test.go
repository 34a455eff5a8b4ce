package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/playstats/internal/domain/model"
)

func event(id string, group model.GroupID) Event {
	return model.PlayEvent{EventID: id, GroupID: group, UserID: 1, SongTitle: "song"}
}

func TestInMemoryQueue_EnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	q := NewInMemoryQueue(WithCapacity(2))

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, event("e1", -1)) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.EventID != "e1" || got.GroupID != -1 {
		t.Errorf("unexpected event %+v", got)
	}
}

func TestInMemoryQueue_Backpressure(t *testing.T) {
	ctx := context.Background()
	q := NewInMemoryQueue(WithCapacity(2))

	for i := 0; i < 2; i++ {
		if !q.Enqueue(ctx, event(fmt.Sprint(i), 1)) {
			t.Fatalf("enqueue %d: expected success", i)
		}
	}
	if q.Enqueue(ctx, event("overflow", 1)) {
		t.Error("expected enqueue to fail when full")
	}
	if q.Capacity() != 2 || q.Len(ctx) != 2 {
		t.Errorf("unexpected capacity %d / len %d", q.Capacity(), q.Len(ctx))
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if NewInMemoryQueue().Enqueue(cancelled, event("x", 1)) {
		t.Error("expected enqueue to fail on a cancelled context")
	}
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	ctx := context.Background()
	q := NewInMemoryQueue(WithCapacity(10))
	for i := 0; i < 3; i++ {
		q.Enqueue(ctx, event(fmt.Sprint(i), 1))
	}

	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected closed")
	}
	if q.Enqueue(ctx, event("late", 1)) {
		t.Error("expected enqueue after close to fail")
	}

	var n int
	for range q.Dequeue(ctx) {
		n++
	}
	if n != 3 {
		t.Errorf("expected 3 drained events, got %d", n)
	}
}

func TestInMemoryQueue_DequeueStopsOnContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Dequeue(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue channel not closed after cancel")
	}
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	ctx := context.Background()
	q := NewInMemoryQueue(WithCapacity(1000))

	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if !q.Enqueue(ctx, event(fmt.Sprintf("%d-%d", p, i), model.GroupID(p+1))) {
					t.Errorf("enqueue %d-%d failed", p, i)
				}
			}
		}(p)
	}
	wg.Wait()

	if l := q.Len(ctx); l != 1000 {
		t.Errorf("expected 1000 queued events, got %d", l)
	}
}

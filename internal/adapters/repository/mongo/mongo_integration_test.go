//go:build integration

package mongo

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/model"
)

func prepareMongo(t *testing.T) (*Store, *History) {
	t.Helper()

	uri := os.Getenv("PLAYSTATS_TEST_MONGO_URI")
	if uri == "" {
		uri = "mongodb://127.0.0.1:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	if err != nil {
		t.Fatal(err)
	}
	db := client.Database("playstats_test")
	if err := db.Drop(ctx); err != nil {
		t.Fatal(err)
	}
	if err := EnsureIndexes(ctx, db); err != nil {
		t.Fatal(err)
	}

	store := NewStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store, NewHistory(db)
}

func TestMongoIncrementConcurrent(t *testing.T) {
	var (
		ctx      = context.Background()
		store, _ = prepareMongo(t)
		wg       sync.WaitGroup
	)

	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if _, err := store.Increment(ctx, -1001); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	have, err := store.Get(ctx, -1001)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(400); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestMongoOrdered(t *testing.T) {
	ctx := context.Background()
	store, _ := prepareMongo(t)

	for group, n := range map[model.GroupID]int{-1: 5, -2: 9, -3: 2, -4: 5} {
		for i := 0; i < n; i++ {
			if _, err := store.Increment(ctx, group); err != nil {
				t.Fatal(err)
			}
		}
	}

	have, err := store.Ordered(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []model.GroupCounter{{GroupID: -2, Count: 9}, {GroupID: -4, Count: 5}, {GroupID: -1, Count: 5}}
	for i := range want {
		if have[i] != want[i] {
			t.Errorf("position %d: have %v, want %v", i, have[i], want[i])
		}
	}

	if n, _ := store.Get(ctx, -99); n != 0 {
		t.Errorf("absent group: have %v, want 0", n)
	}
}

func TestMongoHistory(t *testing.T) {
	ctx := context.Background()
	_, h := prepareMongo(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "a"} {
		rec := model.PlayRecord{ID: id, GroupID: -5, UserID: 1, SongTitle: id, PlayedAt: base.Add(time.Duration(i) * time.Second)}
		if err := h.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	have, err := h.Recent(ctx, -5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(have) != 2 || have[0].ID != "b" {
		t.Errorf("unexpected history: %+v", have)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err = h.Append(cctx, model.PlayRecord{ID: "z", GroupID: -5, PlayedAt: base})
	if !errors.Is(err, repository.ErrStorageUnavailable) {
		t.Errorf("have %v, want storage unavailable", err)
	}
}

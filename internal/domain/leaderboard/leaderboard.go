// Package leaderboard ranks groups by accrued play count.
//
// Ranking is count descending, then group id ascending, so every position is
// deterministic. Groups that never played are not ranked.
package leaderboard

import (
	"context"
	"fmt"
	"slices"

	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/model"
	"github.com/okian/playstats/internal/domain/types"
	"github.com/okian/playstats/pkg/metrics"
)

// Board answers leaderboard queries against a counter store. Stores that
// implement repository.OrderedStore rank on their side; any other store is
// snapshotted and sorted here.
type Board struct {
	store repository.Store
}

func New(store repository.Store) *Board {
	return &Board{store: store}
}

// Compare orders a before b when it ranks higher.
func Compare(a, b model.GroupCounter) int {
	switch {
	case a.Count > b.Count:
		return -1
	case a.Count < b.Count:
		return 1
	case a.GroupID < b.GroupID:
		return -1
	case a.GroupID > b.GroupID:
		return 1
	}
	return 0
}

// Top returns up to k entries from the top of the board.
func (b *Board) Top(ctx context.Context, k int) ([]types.Entry, error) {
	if k < 1 {
		return nil, fmt.Errorf("top %d: %w", k, repository.ErrInvalidArgument)
	}
	metrics.RecordLeaderboardQuery("top")

	list, err := b.ranked(ctx, k)
	if err != nil {
		return nil, err
	}

	out := make([]types.Entry, len(list))
	for i, c := range list {
		out[i] = entry(i, c)
	}
	return out, nil
}

// RankAt returns the entry at 0-based position index, or ErrNotFound when
// fewer than index+1 groups have played.
func (b *Board) RankAt(ctx context.Context, index int) (types.Entry, error) {
	if index < 0 {
		return types.Entry{}, fmt.Errorf("rank %d: %w", index, repository.ErrNotFound)
	}
	metrics.RecordLeaderboardQuery("rank")

	limit := index + 1
	if limit < 0 {
		limit = 0
	}
	list, err := b.ranked(ctx, limit)
	if err != nil {
		return types.Entry{}, err
	}
	if index >= len(list) {
		return types.Entry{}, fmt.Errorf("rank %d of %d: %w", index, len(list), repository.ErrNotFound)
	}
	return entry(index, list[index]), nil
}

// ranked returns up to limit counters in rank order; limit <= 0 means all.
func (b *Board) ranked(ctx context.Context, limit int) ([]model.GroupCounter, error) {
	var (
		list []model.GroupCounter
		err  error
	)
	if o, ok := b.store.(repository.OrderedStore); ok {
		list, err = o.Ordered(ctx, limit)
	} else {
		list, err = b.store.Snapshot(ctx)
		if err == nil {
			slices.SortFunc(list, Compare)
		}
	}
	if err != nil {
		return nil, err
	}

	list = slices.DeleteFunc(list, func(c model.GroupCounter) bool { return c.Count < 1 })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func entry(pos int, c model.GroupCounter) types.Entry {
	return types.Entry{Rank: pos + 1, GroupID: int64(c.GroupID), Count: c.Count}
}

package playsim

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/okian/playstats/internal/domain/leaderboard"
	"github.com/okian/playstats/internal/domain/model"
	"github.com/okian/playstats/pkg/logger"
)

// ErrMismatch reports counts or ordering that do not match what was sent.
var ErrMismatch = errors.New("verification mismatch")

// baseline reads the current count of every group so runs against a
// non-empty service still verify.
func baseline(ctx context.Context, c *client, groups map[model.GroupID]int64) (map[model.GroupID]int64, error) {
	out := make(map[model.GroupID]int64, len(groups))
	for g := range groups {
		n, err := c.groupCount(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("baseline for group %d: %w", g, err)
		}
		out[g] = n
	}
	return out, nil
}

// awaitCounts polls until every group reached its expected count.
func awaitCounts(ctx context.Context, cfg *Config, c *client, want map[model.GroupID]int64) error {
	deadline := time.Now().Add(cfg.WaitTimeout)
	pending := make(map[model.GroupID]int64, len(want))
	for g, n := range want {
		pending[g] = n
	}

	for {
		for g, n := range pending {
			got, err := c.groupCount(ctx, g)
			if err != nil {
				return err
			}
			if got > n {
				return fmt.Errorf("%w: group %d has %d plays, expected %d", ErrMismatch, g, got, n)
			}
			if got == n {
				delete(pending, g)
			}
		}
		if len(pending) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d groups still behind after %s", ErrMismatch, len(pending), cfg.WaitTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.PollInterval):
		}
	}
}

// checkLeaderboard verifies ranks are dense from 1 and rows are ordered by
// count descending then group id ascending.
func checkLeaderboard(entries []Entry) error {
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: row %d has rank %d", ErrMismatch, i, e.Rank)
		}
		if e.Count < 1 {
			return fmt.Errorf("%w: group %d listed with %d plays", ErrMismatch, e.GroupID, e.Count)
		}
		if i == 0 {
			continue
		}
		prev := model.GroupCounter{GroupID: model.GroupID(entries[i-1].GroupID), Count: entries[i-1].Count}
		cur := model.GroupCounter{GroupID: model.GroupID(e.GroupID), Count: e.Count}
		if leaderboard.Compare(prev, cur) >= 0 {
			return fmt.Errorf("%w: group %d ranked before group %d", ErrMismatch, prev.GroupID, cur.GroupID)
		}
	}
	return nil
}

// expectedTop returns the n best of counts in leaderboard order.
func expectedTop(counts map[model.GroupID]int64, n int) []model.GroupCounter {
	list := make([]model.GroupCounter, 0, len(counts))
	for g, c := range counts {
		if c > 0 {
			list = append(list, model.GroupCounter{GroupID: g, Count: c})
		}
	}
	slices.SortFunc(list, leaderboard.Compare)
	if len(list) > n {
		list = list[:n]
	}
	return list
}

// verify waits for accrual and cross-checks the leaderboard. Groups from
// this run that belong in the top must appear with their exact counts.
func verify(ctx context.Context, cfg *Config, c *client, want map[model.GroupID]int64, stats *Stats) error {
	log := logger.Get().Named("playsim")

	if err := awaitCounts(ctx, cfg, c, want); err != nil {
		return err
	}
	stats.GroupsVerified = len(want)

	entries, err := c.leaderboard(ctx, cfg.TopN)
	if err != nil {
		return err
	}
	if err := checkLeaderboard(entries); err != nil {
		return err
	}
	stats.LeaderboardTopN = len(entries)

	listed := make(map[model.GroupID]int64, len(entries))
	for _, e := range entries {
		listed[model.GroupID(e.GroupID)] = e.Count
	}
	floor := int64(0)
	if len(entries) == cfg.TopN && len(entries) > 0 {
		floor = entries[len(entries)-1].Count
	}
	for _, gc := range expectedTop(want, cfg.TopN) {
		if gc.Count < floor {
			break
		}
		got, ok := listed[gc.GroupID]
		if !ok {
			if gc.Count == floor {
				continue // lost a tie-break to another run's group
			}
			return fmt.Errorf("%w: group %d with %d plays missing from the top %d", ErrMismatch, gc.GroupID, gc.Count, cfg.TopN)
		}
		if got != gc.Count {
			return fmt.Errorf("%w: leaderboard shows %d plays for group %d, expected %d", ErrMismatch, got, gc.GroupID, gc.Count)
		}
	}

	log.Info(ctx, "leaderboard verified", logger.Int("entries", len(entries)), logger.Int("groups", len(want)))
	return nil
}

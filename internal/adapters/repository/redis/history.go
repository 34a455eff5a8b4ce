package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/okian/playstats/internal/adapters/history"
	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/model"
)

const defaultHistoryCap = 100

type playDoc struct {
	ID        string    `json:"id"`
	GroupID   int64     `json:"group_id"`
	UserID    int64     `json:"user_id"`
	SongTitle string    `json:"song_title"`
	PlayedAt  time.Time `json:"played_at"`
}

// History keeps the newest records of each group in a list trimmed to cap.
type History struct {
	pool   *redis.Pool
	prefix string
	cap    int
}

var (
	_ history.Recorder = (*History)(nil)
	_ history.Reader   = (*History)(nil)
)

// NewHistory returns a recorder keeping at most perGroup records per group.
func NewHistory(pool *redis.Pool, prefix string, perGroup int) *History {
	if perGroup < 1 {
		perGroup = defaultHistoryCap
	}
	return &History{pool: pool, prefix: prefix, cap: perGroup}
}

func (h *History) key(group model.GroupID) string {
	return fmt.Sprintf("%s:plays:%s", h.prefix, group)
}

// Append pushes rec and trims the list in one transaction.
func (h *History) Append(ctx context.Context, rec model.PlayRecord) error {
	if err := rec.GroupID.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(playDoc{
		ID:        rec.ID,
		GroupID:   int64(rec.GroupID),
		UserID:    rec.UserID,
		SongTitle: rec.SongTitle,
		PlayedAt:  rec.PlayedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode play record: %w", err)
	}

	conn, err := h.pool.GetContext(ctx)
	if err != nil {
		return repository.Unavailable("redis.history.append", err)
	}
	defer conn.Close()

	key := h.key(rec.GroupID)
	if err := conn.Send(commandMulti); err != nil {
		return repository.Unavailable("redis.history.append", err)
	}
	if err := conn.Send(commandLPush, key, payload); err != nil {
		return repository.Unavailable("redis.history.append", err)
	}
	if err := conn.Send(commandLTrim, key, 0, h.cap-1); err != nil {
		return repository.Unavailable("redis.history.append", err)
	}
	if _, err := redis.DoContext(conn, ctx, commandExec); err != nil {
		return repository.Unavailable("redis.history.append", err)
	}
	return nil
}

func (h *History) Recent(ctx context.Context, group model.GroupID, limit int) ([]model.PlayRecord, error) {
	if limit <= 0 || limit > h.cap {
		limit = h.cap
	}

	conn, err := h.pool.GetContext(ctx)
	if err != nil {
		return nil, repository.Unavailable("redis.history.recent", err)
	}
	defer conn.Close()

	items, err := redis.ByteSlices(redis.DoContext(conn, ctx, commandLRange, h.key(group), 0, limit-1))
	if err != nil {
		return nil, repository.Unavailable("redis.history.recent", err)
	}

	out := make([]model.PlayRecord, 0, len(items))
	for _, raw := range items {
		var d playDoc
		if err := json.Unmarshal(raw, &d); err != nil {
			continue
		}
		out = append(out, model.PlayRecord{
			ID:        d.ID,
			GroupID:   model.GroupID(d.GroupID),
			UserID:    d.UserID,
			SongTitle: d.SongTitle,
			PlayedAt:  d.PlayedAt.UTC(),
		})
	}
	return out, nil
}

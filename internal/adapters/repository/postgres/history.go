package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/okian/playstats/internal/adapters/history"
	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/model"
)

const defaultRecentLimit = 100

const (
	pgInsertPlay = `
		INSERT INTO %s.plays(id, group_id, user_id, song_title, played_at)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	pgRecentPlays = `
		SELECT
			id, group_id, user_id, song_title, played_at
		FROM
			%s.plays
		WHERE
			group_id = $1
		ORDER BY
			played_at DESC, id DESC
		LIMIT
			$2`
)

type playRow struct {
	ID        string    `db:"id"`
	GroupID   int64     `db:"group_id"`
	UserID    int64     `db:"user_id"`
	SongTitle string    `db:"song_title"`
	PlayedAt  time.Time `db:"played_at"`
}

// History appends play records to the plays table.
type History struct {
	db *sqlx.DB
	ns string
}

var (
	_ history.Recorder = (*History)(nil)
	_ history.Reader   = (*History)(nil)
)

// NewHistory returns a recorder using tables in schema ns.
func NewHistory(db *sqlx.DB, ns string) (*History, error) {
	if err := CheckNamespace(ns); err != nil {
		return nil, err
	}
	return &History{db: db, ns: ns}, nil
}

// Append stores rec. Re-appending the same record id is a no-op.
func (h *History) Append(ctx context.Context, rec model.PlayRecord) error {
	if err := rec.GroupID.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(pgInsertPlay, h.ns)
	err := withSetup(ctx, h.db, h.ns, func() error {
		_, err := h.db.ExecContext(ctx, query,
			rec.ID,
			int64(rec.GroupID),
			rec.UserID,
			rec.SongTitle,
			rec.PlayedAt.UTC(),
		)
		return err
	})
	return repository.Unavailable("postgres.history.append", err)
}

func (h *History) Recent(ctx context.Context, group model.GroupID, limit int) ([]model.PlayRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	var (
		query = fmt.Sprintf(pgRecentPlays, h.ns)
		rows  []playRow
	)
	err := withSetup(ctx, h.db, h.ns, func() error {
		rows = rows[:0]
		return h.db.SelectContext(ctx, &rows, query, int64(group), limit)
	})
	if err != nil {
		return nil, repository.Unavailable("postgres.history.recent", err)
	}

	out := make([]model.PlayRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.PlayRecord{
			ID:        r.ID,
			GroupID:   model.GroupID(r.GroupID),
			UserID:    r.UserID,
			SongTitle: r.SongTitle,
			PlayedAt:  r.PlayedAt.UTC(),
		})
	}
	return out, nil
}

package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/okian/playstats/internal/adapters/history"
	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/model"
)

const defaultRecentLimit = 100

type playDoc struct {
	ID        string    `bson:"_id"`
	GroupID   int64     `bson:"group_id"`
	UserID    int64     `bson:"user_id"`
	SongTitle string    `bson:"song_title"`
	PlayedAt  time.Time `bson:"played_at"`
}

func toPlayDoc(rec model.PlayRecord) playDoc {
	return playDoc{
		ID:        rec.ID,
		GroupID:   int64(rec.GroupID),
		UserID:    rec.UserID,
		SongTitle: rec.SongTitle,
		PlayedAt:  rec.PlayedAt.UTC(),
	}
}

func (d playDoc) record() model.PlayRecord {
	return model.PlayRecord{
		ID:        d.ID,
		GroupID:   model.GroupID(d.GroupID),
		UserID:    d.UserID,
		SongTitle: d.SongTitle,
		PlayedAt:  d.PlayedAt.UTC(),
	}
}

// History stores one document per play in the plays collection.
type History struct {
	coll *mongo.Collection
}

var (
	_ history.Recorder = (*History)(nil)
	_ history.Reader   = (*History)(nil)
)

func NewHistory(db *mongo.Database) *History {
	return &History{coll: db.Collection(collectionPlays)}
}

// Append inserts rec. A record id that already exists is treated as stored.
func (h *History) Append(ctx context.Context, rec model.PlayRecord) error {
	if err := rec.GroupID.Validate(); err != nil {
		return err
	}

	_, err := h.coll.InsertOne(ctx, toPlayDoc(rec))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return repository.Unavailable("mongo.history.append", err)
	}
	return nil
}

func (h *History) Recent(ctx context.Context, group model.GroupID, limit int) ([]model.PlayRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "played_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := h.coll.Find(ctx, bson.M{"group_id": int64(group)}, opts)
	if err != nil {
		return nil, repository.Unavailable("mongo.history.recent", err)
	}

	var docs []playDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, repository.Unavailable("mongo.history.recent", err)
	}

	out := make([]model.PlayRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

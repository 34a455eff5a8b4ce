package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/model"
)

type counterDoc struct {
	GroupID   int64     `bson:"_id"`
	Count     int64     `bson:"count"`
	UpdatedAt time.Time `bson:"updated_at,omitempty"`
}

// Store is a repository.OrderedStore with one document per group. Increments
// use an upserting $inc, which the server applies atomically per document.
type Store struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ repository.OrderedStore = (*Store)(nil)

// NewStore returns a Store over the counters collection of db.
func NewStore(db *mongo.Database) *Store {
	return &Store{coll: db.Collection(collectionCounters), now: time.Now}
}

func incrementFilter(group model.GroupID) bson.M {
	return bson.M{"_id": int64(group)}
}

func incrementUpdate(now time.Time) bson.M {
	return bson.M{
		"$inc": bson.M{"count": int64(1)},
		"$set": bson.M{"updated_at": now.UTC()},
	}
}

func (s *Store) Increment(ctx context.Context, group model.GroupID) (int64, error) {
	if err := group.Validate(); err != nil {
		return 0, err
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	err := s.coll.FindOneAndUpdate(ctx, incrementFilter(group), incrementUpdate(s.now()), opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Two first plays raced on the insert; the loser retries as an update.
		err = s.coll.FindOneAndUpdate(ctx, incrementFilter(group), incrementUpdate(s.now()), opts).Decode(&doc)
	}
	if err != nil {
		return 0, repository.Unavailable("mongo.increment", err)
	}
	return doc.Count, nil
}

func (s *Store) Get(ctx context.Context, group model.GroupID) (int64, error) {
	if err := group.Validate(); err != nil {
		return 0, err
	}

	var doc counterDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": int64(group)}).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return 0, nil
	case err != nil:
		return 0, repository.Unavailable("mongo.get", err)
	}
	return doc.Count, nil
}

func (s *Store) Snapshot(ctx context.Context) ([]model.GroupCounter, error) {
	return s.Ordered(ctx, 0)
}

// Ordered sorts on the server; limit <= 0 returns every group.
func (s *Store) Ordered(ctx context.Context, limit int) ([]model.GroupCounter, error) {
	opts := options.Find().SetSort(bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, bson.M{"count": bson.M{"$gt": 0}}, opts)
	if err != nil {
		return nil, repository.Unavailable("mongo.ordered", err)
	}

	var docs []counterDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, repository.Unavailable("mongo.ordered", err)
	}

	out := make([]model.GroupCounter, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.GroupCounter{GroupID: model.GroupID(d.GroupID), Count: d.Count})
	}
	return out, nil
}

// Close disconnects the underlying client, shared with any History on it.
func (s *Store) Close() error {
	return s.coll.Database().Client().Disconnect(context.Background())
}

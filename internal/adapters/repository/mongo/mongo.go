// Package mongo keeps group counters and play history in MongoDB.
package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/okian/playstats/internal/adapters/repository"
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "playstats"

const (
	collectionCounters = "group_counters"
	collectionPlays    = "plays"
)

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, repository.Unavailable("mongo.connect", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, repository.Unavailable("mongo.ping", err)
	}
	return client, nil
}

// EnsureIndexes creates the ranking and history indexes. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collectionCounters).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("count_desc_id_asc"),
	})
	if err != nil {
		return repository.Unavailable("mongo.indexes", err)
	}

	_, err = db.Collection(collectionPlays).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "played_at", Value: -1}},
		Options: options.Index().SetName("group_played_at"),
	})
	if err != nil {
		return repository.Unavailable("mongo.indexes", err)
	}
	return nil
}

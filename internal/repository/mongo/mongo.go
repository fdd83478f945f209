// Package mongo implements the repository interfaces on MongoDB.
//
// COLLECTIONS:
//   - users    one document per account, unique on username
//   - posts    one document per post, with a numeric seq for feed order
//   - follows  one document per edge {follower, followee}, unique on the pair
//   - counters named sequences; "posts" hands out post seq values
//
// Documents are plain structs with bson tags. The model package stays free of
// storage tags, so conversion happens in toModel/fromModel helpers here.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fitted/fitted/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB holds the client and the collections used by the repositories.
type DB struct {
	client   *mongo.Client
	users    *mongo.Collection
	posts    *mongo.Collection
	follows  *mongo.Collection
	counters *mongo.Collection
}

// Connect dials uri, pings the server and makes sure every index exists.
func Connect(ctx context.Context, uri, database string) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	dbh := client.Database(database)
	db := &DB{
		client:   client,
		users:    dbh.Collection("users"),
		posts:    dbh.Collection("posts"),
		follows:  dbh.Collection("follows"),
		counters: dbh.Collection("counters"),
	}

	if err := db.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return db, nil
}

// Close disconnects the client.
func (db *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

// ensureIndexes is the document-store counterpart of the sqlite migrations.
// CreateMany is idempotent for identical index definitions.
func (db *DB) ensureIndexes(ctx context.Context) error {
	_, err := db.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{
			Keys: bson.D{{Key: "githubId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"githubId": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo: creating user indexes: %w", err)
	}

	_, err = db.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}, {Key: "seq", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: creating post indexes: %w", err)
	}

	_, err = db.follows.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "follower", Value: 1}, {Key: "followee", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "followee", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: creating follow indexes: %w", err)
	}
	return nil
}

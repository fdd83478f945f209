package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fitted/fitted/internal/repository"
)

var _ repository.FollowRepository = (*DB)(nil)

type followDoc struct {
	Follower  string    `bson:"follower"`
	Followee  string    `bson:"followee"`
	CreatedAt time.Time `bson:"createdAt"`
}

// ToggleFollow deletes the edge, and inserts it when nothing was deleted.
//
// Each step is a single-document write. The unique (follower, followee) index
// means a racing insert fails with a duplicate key, which is reported as
// "following": the edge exists either way.
func (db *DB) ToggleFollow(ctx context.Context, follower, followee string) (bool, error) {
	if _, err := db.GetUserByUsername(ctx, followee); err != nil {
		return false, err
	}

	res, err := db.follows.DeleteOne(ctx, bson.M{"follower": follower, "followee": followee})
	if err != nil {
		return false, fmt.Errorf("mongo: removing follow %s→%s: %w", follower, followee, err)
	}
	if res.DeletedCount > 0 {
		return false, nil
	}

	_, err = db.follows.InsertOne(ctx, followDoc{
		Follower:  follower,
		Followee:  followee,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil && !isDuplicate(err) {
		return false, fmt.Errorf("mongo: adding follow %s→%s: %w", follower, followee, err)
	}
	return true, nil
}

func (db *DB) IsFollowing(ctx context.Context, follower, followee string) (bool, error) {
	n, err := db.follows.CountDocuments(ctx,
		bson.M{"follower": follower, "followee": followee},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo: checking follow %s→%s: %w", follower, followee, err)
	}
	return n > 0, nil
}

func (db *DB) Following(ctx context.Context, username string) ([]string, error) {
	return db.listEdges(ctx, bson.M{"follower": username}, func(d followDoc) string { return d.Followee })
}

func (db *DB) Followers(ctx context.Context, username string) ([]string, error) {
	return db.listEdges(ctx, bson.M{"followee": username}, func(d followDoc) string { return d.Follower })
}

func (db *DB) CountFollowing(ctx context.Context, username string) (int64, error) {
	return db.countEdges(ctx, bson.M{"follower": username}, username)
}

func (db *DB) CountFollowers(ctx context.Context, username string) (int64, error) {
	return db.countEdges(ctx, bson.M{"followee": username}, username)
}

func (db *DB) countEdges(ctx context.Context, filter bson.M, username string) (int64, error) {
	n, err := db.follows.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongo: counting follows for %s: %w", username, err)
	}
	return n, nil
}

func (db *DB) listEdges(ctx context.Context, filter bson.M, pick func(followDoc) string) ([]string, error) {
	cur, err := db.follows.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: listing follows: %w", err)
	}
	var docs []followDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding follows: %w", err)
	}

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, pick(d))
	}
	return names, nil
}

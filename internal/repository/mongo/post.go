package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

type postDoc struct {
	ID        string    `bson:"_id"`
	Seq       int64     `bson:"seq"`
	Username  string    `bson:"username"`
	Content   string    `bson:"content"`
	ImageURL  string    `bson:"imageURL,omitempty"`
	Date      string    `bson:"date"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (d postDoc) toModel() model.Post {
	return model.Post{
		ID:        d.ID,
		Seq:       d.Seq,
		Username:  d.Username,
		Content:   d.Content,
		ImageURL:  d.ImageURL,
		Date:      d.Date,
		CreatedAt: d.CreatedAt,
	}
}

// nextSeq atomically increments the named counter and returns the new value.
// The upsert creates the counter on first use, starting at 1.
func (db *DB) nextSeq(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := db.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("mongo: incrementing %s counter: %w", name, err)
	}
	return counter.Value, nil
}

// CreatePost checks that the author exists, since the document store has no
// foreign keys, then inserts with the next seq.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	if _, err := db.GetUserByUsername(ctx, post.Username); err != nil {
		return err
	}

	seq, err := db.nextSeq(ctx, "posts")
	if err != nil {
		return err
	}

	post.ID = xid.New().String()
	post.Seq = seq
	post.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if post.Date == "" {
		post.Date = post.CreatedAt.Format(model.DateLayout)
	}

	_, err = db.posts.InsertOne(ctx, postDoc{
		ID:        post.ID,
		Seq:       post.Seq,
		Username:  post.Username,
		Content:   post.Content,
		ImageURL:  post.ImageURL,
		Date:      post.Date,
		CreatedAt: post.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("mongo: creating post: %w", err)
	}
	return nil
}

func (db *DB) CountPosts(ctx context.Context) (int64, error) {
	n, err := db.posts.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("mongo: counting posts: %w", err)
	}
	return n, nil
}

func (db *DB) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	if opts.Limit <= 0 {
		return []model.Post{}, nil
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	return db.findPosts(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "seq", Value: 1}}).
			SetSkip(int64(offset)).
			SetLimit(int64(opts.Limit)),
	)
}

func (db *DB) ListByAuthors(ctx context.Context, usernames []string) ([]model.Post, error) {
	if len(usernames) == 0 {
		return []model.Post{}, nil
	}
	return db.findPosts(ctx,
		bson.M{"username": bson.M{"$in": usernames}},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
}

func (db *DB) CountByAuthor(ctx context.Context, username string) (int64, error) {
	n, err := db.posts.CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return 0, fmt.Errorf("mongo: counting posts for %s: %w", username, err)
	}
	return n, nil
}

func (db *DB) SearchPosts(ctx context.Context, q string) ([]model.Post, error) {
	return db.findPosts(ctx,
		bson.M{"content": containsFold(q)},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
}

func (db *DB) PostRank(ctx context.Context, seq int64) (int64, error) {
	n, err := db.posts.CountDocuments(ctx, bson.M{"seq": bson.M{"$lte": seq}})
	if err != nil {
		return 0, fmt.Errorf("mongo: ranking post %d: %w", seq, err)
	}
	return n, nil
}

func (db *DB) findPosts(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Post, error) {
	cur, err := db.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing posts: %w", err)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding posts: %w", err)
	}

	posts := make([]model.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, d.toModel())
	}
	return posts, nil
}

// isDuplicate is shared with the follow repository.
func isDuplicate(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

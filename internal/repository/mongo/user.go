package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

type userDoc struct {
	ID             string    `bson:"_id"`
	Username       string    `bson:"username"`
	Email          string    `bson:"email"`
	PasswordHash   string    `bson:"passwordHash"`
	Age            int       `bson:"age"`
	ProfilePicture string    `bson:"profilePicture"`
	GitHubID       int64     `bson:"githubId,omitempty"` // absent for password accounts
	CreatedAt      time.Time `bson:"createdAt"`
}

func (d userDoc) toModel() *model.User {
	return &model.User{
		ID:             d.ID,
		Username:       d.Username,
		Email:          d.Email,
		PasswordHash:   d.PasswordHash,
		Age:            d.Age,
		ProfilePicture: d.ProfilePicture,
		GitHubID:       d.GitHubID,
		CreatedAt:      d.CreatedAt,
	}
}

func userFromModel(u *model.User) userDoc {
	return userDoc{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		PasswordHash:   u.PasswordHash,
		Age:            u.Age,
		ProfilePicture: u.ProfilePicture,
		GitHubID:       u.GitHubID,
		CreatedAt:      u.CreatedAt,
	}
}

func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	// Mongo stores milliseconds; truncate so the caller sees what a read returns.
	user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := db.users.InsertOne(ctx, userFromModel(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("mongo: inserting user %s: %w", user.Username, err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.findUser(ctx, bson.M{"_id": id}, id)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.findUser(ctx, bson.M{"username": username}, username)
}

func (db *DB) findUser(ctx context.Context, filter bson.M, key string) (*model.User, error) {
	var doc userDoc
	err := db.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("user", key)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: getting user %s: %w", key, err)
	}
	return doc.toModel(), nil
}

func (db *DB) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	or := bson.A{bson.M{"username": username}}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	n, err := db.users.CountDocuments(ctx, bson.M{"$or": or}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo: checking user %s: %w", username, err)
	}
	return n > 0, nil
}

// UpsertGitHubUser keeps the ID and username of an already linked account and
// only refreshes its email. An empty picture is filled from GitHub.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	var existing userDoc
	err := db.users.FindOne(ctx, bson.M{"githubId": user.GitHubID}).Decode(&existing)
	switch {
	case err == nil:
		set := bson.M{"email": user.Email}
		if existing.ProfilePicture == "" {
			set["profilePicture"] = user.ProfilePicture
			existing.ProfilePicture = user.ProfilePicture
		}
		if _, err := db.users.UpdateByID(ctx, existing.ID, bson.M{"$set": set}); err != nil {
			return fmt.Errorf("mongo: updating github user %d: %w", user.GitHubID, err)
		}
		existing.Email = user.Email
		*user = *existing.toModel()
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return db.CreateUser(ctx, user)
	default:
		return fmt.Errorf("mongo: looking up github user %d: %w", user.GitHubID, err)
	}
}

func (db *DB) UpdateProfilePicture(ctx context.Context, username, picture string) error {
	res, err := db.users.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$set": bson.M{"profilePicture": picture}},
	)
	if err != nil {
		return fmt.Errorf("mongo: updating picture for %s: %w", username, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", username)
	}
	return nil
}

func (db *DB) SearchUsers(ctx context.Context, q string) ([]model.User, error) {
	cur, err := db.users.Find(ctx,
		bson.M{"username": containsFold(q)},
		options.Find().SetSort(bson.D{{Key: "username", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: searching users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding users: %w", err)
	}

	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, *d.toModel())
	}
	return users, nil
}

// containsFold builds a case-insensitive substring match. The query is
// quoted, so regex metacharacters typed by a user match literally.
func containsFold(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}

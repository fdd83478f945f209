package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fitted/fitted/internal/config"
	"github.com/fitted/fitted/internal/media"
	"github.com/fitted/fitted/internal/repository"
	mongoRepo "github.com/fitted/fitted/internal/repository/mongo"
	sqliteRepo "github.com/fitted/fitted/internal/repository/sqlite"
)

// OpenStore connects the backend named by cfg.Store.
//
// IMPORT ALIASES:
// repository/sqlite and repository/mongo are imported as sqliteRepo and
// mongoRepo so they are not confused with the driver packages they wrap.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store {
	case "mongo":
		db, err := mongoRepo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("opening mongo store: %w", err)
		}
		return db, nil
	default:
		// The data directory is created on first run, like `mkdir -p`.
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return db, nil
	}
}

// OpenMedia builds the image store named by cfg.MediaBackend. The second
// return value is the directory to serve under /uploads, empty for S3.
func OpenMedia(ctx context.Context, cfg *config.Config) (media.Store, string, error) {
	if cfg.MediaBackend == "s3" {
		s, err := media.NewS3Store(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3PublicURL)
		if err != nil {
			return nil, "", fmt.Errorf("opening s3 media store: %w", err)
		}
		return s, "", nil
	}

	s, err := media.NewLocalStore(cfg.UploadDir, cfg.BasePath+"/uploads")
	if err != nil {
		return nil, "", fmt.Errorf("opening local media store: %w", err)
	}
	return s, s.Dir(), nil
}

// OpenRedis returns nil when Redis is not configured. A configured but
// unreachable Redis is an error: silently falling back would split the live
// channel between instances.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}

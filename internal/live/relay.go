package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel shared by every instance.
const Channel = "fitted:posts"

// RedisRelay publishes events to Redis and feeds every event received on the
// channel, including this instance's own, into the local hub.
type RedisRelay struct {
	rdb    *redis.Client
	hub    *Hub
	logger *slog.Logger
}

var _ Publisher = (*RedisRelay)(nil)

func NewRedisRelay(rdb *redis.Client, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, hub: hub, logger: logger}
}

// Publish sends ev through Redis. If Redis is unreachable the event is still
// delivered to this instance's clients and the error is returned for logging.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, Channel, data).Err(); err != nil {
		r.hub.broadcast(data)
		return fmt.Errorf("live: publishing to redis: %w", err)
	}
	return nil
}

// Run subscribes to Channel and blocks until ctx is cancelled. go-redis
// re-subscribes by itself after a dropped connection.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so no event published right
	// after startup is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("live: subscribing to %s: %w", Channel, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev.Type == "" {
				r.logger.Warn("ignoring malformed live event", slog.String("payload", msg.Payload))
				continue
			}
			r.hub.broadcast([]byte(msg.Payload))
		}
	}
}

package data

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	votePrefix   = "votelimit:"
	streamEvents = "council.events"
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// AllowVote enforces a per-member minimum interval between vote submissions.
// Returns true when the member may vote now.
func AllowVote(ctx context.Context, rdb *redis.Client, memberID string, limit time.Duration) (bool, error) {
	ok, err := rdb.SetNX(ctx, votePrefix+memberID, time.Now().Unix(), limit).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// PublishEvent appends a lifecycle event to the council event stream.
// Consumers (the command/UI layer) tail the stream for embed updates.
func PublishEvent(ctx context.Context, rdb *redis.Client, event string, proposalID string, fields map[string]interface{}) error {
	values := map[string]interface{}{
		"event":    event,
		"proposal": proposalID,
		"at":       fmt.Sprintf("%d", time.Now().Unix()),
	}
	for k, v := range fields {
		values[k] = v
	}
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamEvents,
		Values: values,
	}).Result()
	return err
}

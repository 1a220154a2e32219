package jobqueue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

const isolatedJobQueueTestRedisDB = 14

// newTestRedis connects to REDIS_URL (or localhost) on an isolated DB and
// skips the test when no Redis is reachable.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Skipf("Skipping Redis-dependent test: invalid REDIS_URL (%v)", err)
	}
	opts.DB = isolatedJobQueueTestRedisDB

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", err)
	}

	resetJobQueueRedis(t, client)
	t.Cleanup(func() {
		resetJobQueueRedis(t, client)
		_ = client.Close()
	})
	return client
}

func resetJobQueueRedis(t *testing.T, client *redis.Client) {
	t.Helper()

	ctx := context.Background()
	keys, err := client.Keys(ctx, JobKeyPrefix+"*").Result()
	if err == nil && len(keys) > 0 {
		_ = client.Del(ctx, keys...).Err()
	}
	_ = client.Del(ctx, JobQueueKey, JobProcessingKey, JobDelayedKey, JobDeadLetterKey, JobStatsKey).Err()
}

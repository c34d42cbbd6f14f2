// Package notify hands alert firings off to the out-of-process notification
// workers through a Redis-backed job queue.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"logward/core"
)

// DefaultQueueKey is the Redis list the notification workers consume.
const DefaultQueueKey = "logward:notification_jobs"

// JobQueue is the dispatch contract between the scheduler and the
// notification workers.
type JobQueue interface {
	Enqueue(ctx context.Context, job core.NotificationJob) error
}

// RedisQueue pushes jobs onto a Redis list as JSON. Workers pop with BRPOP,
// giving FIFO delivery per queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job core.NotificationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal notification job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push notification job: %w", err)
	}
	return nil
}

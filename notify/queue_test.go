package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logward/core"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisQueue(client, ""), mr
}

func TestRedisQueue_EnqueuePushesJSON(t *testing.T) {
	queue, mr := newTestQueue(t)

	projID := "proj-1"
	job := core.NotificationJob{
		RuleID:            "rule-1",
		RuleName:          "error burst",
		OrganizationID:    "org-1",
		ProjectID:         &projID,
		HistoryID:         "hist-1",
		LogCount:          7,
		Threshold:         5,
		TimeWindowMinutes: 10,
		EmailRecipients:   []string{"oncall@example.com"},
		WebhookURL:        "https://hooks.example.com/alerts",
	}
	require.NoError(t, queue.Enqueue(context.Background(), job))

	items, err := mr.List(DefaultQueueKey)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var decoded core.NotificationJob
	require.NoError(t, json.Unmarshal([]byte(items[0]), &decoded))
	assert.Equal(t, job, decoded)
}

func TestRedisQueue_FIFOForConsumers(t *testing.T) {
	queue, mr := newTestQueue(t)

	for _, id := range []string{"h1", "h2", "h3"} {
		require.NoError(t, queue.Enqueue(context.Background(), core.NotificationJob{HistoryID: id}))
	}

	// LPUSH prepends, so consumers popping from the right receive jobs in
	// enqueue order: the tail of the list is the oldest job.
	items, err := mr.List(DefaultQueueKey)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, want := range []string{"h3", "h2", "h1"} {
		var job core.NotificationJob
		require.NoError(t, json.Unmarshal([]byte(items[i]), &job))
		assert.Equal(t, want, job.HistoryID)
	}
}

func TestRedisQueue_CustomKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	queue := NewRedisQueue(client, "custom:jobs")
	require.NoError(t, queue.Enqueue(context.Background(), core.NotificationJob{HistoryID: "h1"}))
	assert.True(t, mr.Exists("custom:jobs"))
	assert.False(t, mr.Exists(DefaultQueueKey))
}

func TestRedisQueue_EnqueueFailsWhenServerDown(t *testing.T) {
	queue, mr := newTestQueue(t)
	mr.Close()
	err := queue.Enqueue(context.Background(), core.NotificationJob{HistoryID: "h1"})
	assert.Error(t, err)
}

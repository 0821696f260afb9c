package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/menu/internal/domain/task"
)

func newQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q, err := NewRedisQueue(context.Background(), rdb, "test_group")
	require.NoError(t, err)
	q.SetBlockTimeout(50 * time.Millisecond)
	return q
}

func TestNewRedisQueue_Idempotent(t *testing.T) {
	q := newQueue(t)
	require.NoError(t, q.EnsureStreamsExist(context.Background()))
}

func TestAddGetAck(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	stream := q.StreamName(task.TypeRefresh)

	requested := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	id, err := q.AddTask(ctx, &task.RefreshTask{Resource: "subcategories", Reason: "test", RequestedAt: requested})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msg, err := q.GetTask(ctx, "worker-1", stream)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, task.TypeRefresh, msg.Values["task_type"])

	data, ok := msg.Values["task_data"].(string)
	require.True(t, ok)
	decoded, err := task.UnmarshalTask[task.RefreshTask]([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "subcategories", decoded.Resource)
	assert.True(t, requested.Equal(decoded.RequestedAt))

	require.NoError(t, q.AckTask(ctx, stream, msg.ID))

	next, err := q.GetTask(ctx, "worker-1", stream)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestGetTask_Empty(t *testing.T) {
	q := newQueue(t)

	msg, err := q.GetTask(context.Background(), "worker-1", q.StreamName(task.TypeRefresh))
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestAutoClaim_PendingMessage(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	stream := q.StreamName(task.TypeRefresh)

	id, err := q.AddTask(ctx, &task.RefreshTask{Resource: "subcategories"})
	require.NoError(t, err)

	// read but never ack
	msg, err := q.GetTask(ctx, "crashed-worker", stream)
	require.NoError(t, err)
	require.NotNil(t, msg)

	claimed, err := q.AutoClaim(ctx, "rescuer", stream, 0)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, id, claimed[0].ID)
}

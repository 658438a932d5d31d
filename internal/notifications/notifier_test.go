package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()

	assert.NoError(t, n.PublishUser(ctx, 1, EventBorrowApproved, nil))
	assert.NoError(t, n.PublishLibrarians(ctx, EventBorrowRequested, nil))
	assert.NoError(t, n.StartPatternSubscriber(ctx, func(string, string) {
		t.Error("no subscriber should run without Redis")
	}))
}

func TestNotifier_PublishRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type delivery struct {
		channel string
		payload string
	}
	deliveries := make(chan delivery, 4)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		deliveries <- delivery{channel, payload}
	}))

	require.NoError(t, n.PublishUser(ctx, 42, EventBorrowApproved, map[string]any{
		"item_id": float64(7),
	}))

	select {
	case d := <-deliveries:
		assert.Equal(t, "notifications:user:42", d.channel)
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(d.payload), &ev))
		assert.Equal(t, EventBorrowApproved, ev.Type)
		assert.Equal(t, float64(7), ev.Payload["item_id"])
		assert.WithinDuration(t, time.Now().UTC(), ev.Timestamp, time.Minute)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for user event")
	}

	require.NoError(t, n.PublishLibrarians(ctx, EventBorrowRequested, map[string]any{
		"request_id": float64(1),
	}))

	select {
	case d := <-deliveries:
		assert.Equal(t, LibrarianChannel, d.channel)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for librarian event")
	}
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int32
	require.NoError(t, n.StartPatternSubscriber(ctx, func(string, string) {
		atomic.AddInt32(&received, 1)
	}))

	require.NoError(t, n.PublishUser(context.Background(), 1, EventBorrowDenied, nil))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)

	before := atomic.LoadInt32(&received)
	require.NoError(t, n.PublishUser(context.Background(), 1, EventBorrowDenied, nil))
	assert.Never(t, func() bool {
		return atomic.LoadInt32(&received) > before
	}, 200*time.Millisecond, 10*time.Millisecond)
}

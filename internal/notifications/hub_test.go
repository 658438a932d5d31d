package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	client, err := hub.Register(10, false, nil)
	assert.NoError(t, err)
	assert.True(t, hub.IsOnline(10))
	assert.False(t, hub.IsOnline(11))

	hub.UnregisterClient(client)
	assert.False(t, hub.IsOnline(10))

	// Double unregister is harmless.
	hub.UnregisterClient(client)
	assert.Equal(t, 0, hub.totalConns)
}

func TestHub_PerUserConnectionLimit(t *testing.T) {
	hub := NewHub()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(10, false, nil)
		require.NoError(t, err)
	}

	_, err := hub.Register(10, false, nil)
	assert.Error(t, err)

	// Other users are unaffected by one user's limit.
	_, err = hub.Register(11, false, nil)
	assert.NoError(t, err)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()

	patron, err := hub.Register(10, false, nil)
	require.NoError(t, err)
	librarian, err := hub.Register(20, true, nil)
	require.NoError(t, err)

	hub.Broadcast(10, "for-patron")
	select {
	case msg := <-patron.Send:
		assert.Equal(t, "for-patron", string(msg))
	default:
		t.Fatal("patron did not receive the broadcast")
	}
	assert.Empty(t, librarian.Send)

	// Librarian fan-out only reaches librarian connections.
	hub.BroadcastLibrarians("queue-update")
	select {
	case msg := <-librarian.Send:
		assert.Equal(t, "queue-update", string(msg))
	default:
		t.Fatal("librarian did not receive the fan-out")
	}
	assert.Empty(t, patron.Send)
}

func TestHub_TrySendDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()

	client, err := hub.Register(10, false, nil)
	require.NoError(t, err)

	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("fill")
	}

	// The message is dropped but the client is told about it as soon as a
	// slot opens, so it can re-fetch instead of silently missing events.
	hub.Broadcast(10, "overflow")
	assert.Len(t, client.Send, cap(client.Send))
}

func TestHub_StartWiring(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub()
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	patron, err := hub.Register(42, false, nil)
	require.NoError(t, err)
	librarian, err := hub.Register(7, true, nil)
	require.NoError(t, err)

	require.NoError(t, n.PublishUser(ctx, 42, EventBorrowApproved, map[string]any{"request_id": 1}))
	assert.Eventually(t, func() bool {
		return len(patron.Send) == 1
	}, testEventuallyTimeout, testPollInterval)
	assert.Empty(t, librarian.Send)

	require.NoError(t, n.PublishLibrarians(ctx, EventBorrowRequested, map[string]any{"request_id": 2}))
	assert.Eventually(t, func() bool {
		return len(librarian.Send) == 1
	}, testEventuallyTimeout, testPollInterval)

	// A user event for someone with no connection goes nowhere.
	require.NoError(t, n.PublishUser(ctx, 999, EventBorrowDenied, nil))
	assert.Never(t, func() bool {
		return len(patron.Send) > 1 || len(librarian.Send) > 1
	}, 200*time.Millisecond, testPollInterval)
}

func TestHub_Shutdown(t *testing.T) {
	hub := NewHub()

	_, err := hub.Register(10, false, nil)
	require.NoError(t, err)
	_, err = hub.Register(20, true, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.False(t, hub.IsOnline(10))
	assert.False(t, hub.IsOnline(20))
}

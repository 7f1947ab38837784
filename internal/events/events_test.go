package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestSubscriber(client *redis.Client, handler Handler) *Subscriber {
	return NewSubscriber(client, SubscriberConfig{
		Group:         "test-group",
		Consumer:      "test-consumer",
		Stream:        UserEventsStream,
		Handler:       handler,
		BlockDuration: 10 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestPublishAndReadOnce(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	var received []Event
	sub := newTestSubscriber(client, func(ctx context.Context, event Event) error {
		received = append(received, event)
		return nil
	})
	require.NoError(t, sub.ensureGroup(ctx))

	pub := NewPublisher(client)
	require.NoError(t, pub.Publish(ctx, UserEventsStream, UserStatusChanged, UserStatusChangedEvent{UserID: 4, Status: "OFFLINE"}))

	acked, err := sub.ReadOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, acked)
	require.Len(t, received, 1)
	assert.Equal(t, UserStatusChanged, received[0].Type)

	var data UserStatusChangedEvent
	require.NoError(t, received[0].Decode(&data))
	assert.Equal(t, UserStatusChangedEvent{UserID: 4, Status: "OFFLINE"}, data)
}

func TestReadOnceLeavesFailedMessagesPending(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	sub := newTestSubscriber(client, func(ctx context.Context, event Event) error {
		return errors.New("handler failed")
	})
	require.NoError(t, sub.ensureGroup(ctx))
	require.NoError(t, NewPublisher(client).Publish(ctx, UserEventsStream, UserCreated, UserCreatedEvent{UserID: 1}))

	acked, err := sub.ReadOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, acked)

	pending, err := client.XPending(ctx, UserEventsStream, "test-group").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}

func TestReclaimPendingRedeliversFailedMessages(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	failures := 1
	var received []Event
	sub := NewSubscriber(client, SubscriberConfig{
		Group:         "test-group",
		Consumer:      "test-consumer",
		Stream:        UserEventsStream,
		BlockDuration: 10 * time.Millisecond,
		ClaimMinIdle:  time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Handler: func(ctx context.Context, event Event) error {
			if failures > 0 {
				failures--
				return errors.New("transient failure")
			}
			received = append(received, event)
			return nil
		},
	})
	require.NoError(t, sub.ensureGroup(ctx))
	require.NoError(t, NewPublisher(client).Publish(ctx, UserEventsStream, UserStatusChanged, UserStatusChangedEvent{UserID: 7, Status: "OFFLINE"}))

	acked, err := sub.ReadOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, acked)

	time.Sleep(5 * time.Millisecond)
	acked, err = sub.ReclaimPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, acked)
	require.Len(t, received, 1)
	assert.Equal(t, UserStatusChanged, received[0].Type)

	pending, err := client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: UserEventsStream,
		Group:  "test-group",
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReclaimPendingWithNothingPending(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	sub := newTestSubscriber(client, func(ctx context.Context, event Event) error { return nil })
	require.NoError(t, sub.ensureGroup(ctx))

	acked, err := sub.ReclaimPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, acked)
}

func TestReadOnceWithNoMessages(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	sub := newTestSubscriber(client, func(ctx context.Context, event Event) error { return nil })
	require.NoError(t, sub.ensureGroup(ctx))
	// creating the group twice is not an error
	require.NoError(t, sub.ensureGroup(ctx))

	acked, err := sub.ReadOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, acked)
}

func TestStartStopsOnCancel(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub := newTestSubscriber(client, func(ctx context.Context, event Event) error { return nil })
	done := make(chan error, 1)
	go func() { done <- sub.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestDecodeRejectsMismatchedPayload(t *testing.T) {
	event := Event{Type: UserCreated, Data: []byte(`"not an object"`)}
	var data UserCreatedEvent
	assert.Error(t, event.Decode(&data))
}

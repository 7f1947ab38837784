package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Handler func(ctx context.Context, event Event) error

type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	claimMinIdle  time.Duration
	logger        *slog.Logger
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	// ClaimMinIdle is how long a message must sit unacked before it is
	// redelivered to this consumer.
	ClaimMinIdle time.Duration
	Logger       *slog.Logger
}

func NewSubscriber(client *redis.Client, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.ClaimMinIdle == 0 {
		config.ClaimMinIdle = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		claimMinIdle:  config.ClaimMinIdle,
		logger:        config.Logger.With("stream", config.Stream, "group", config.Group),
	}
}

// Start consumes the stream until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.ensureGroup(ctx); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "subscriber started", "consumer", s.consumer)

	var lastClaim time.Time
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "subscriber stopping")
			return ctx.Err()
		default:
			if time.Since(lastClaim) >= s.claimMinIdle {
				if _, err := s.ReclaimPending(ctx); err != nil && ctx.Err() == nil {
					s.logger.ErrorContext(ctx, "error reclaiming pending messages", "error", err)
				}
				lastClaim = time.Now()
			}
			if _, err := s.ReadOnce(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.logger.ErrorContext(ctx, "error reading messages", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Subscriber) ensureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// ReadOnce reads one batch, dispatches it and acks the messages the handler
// accepted. Failed messages stay pending. It returns the number acked.
func (s *Subscriber) ReadOnce(ctx context.Context) (int, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read from stream: %w", err)
	}

	acked := 0
	for _, stream := range streams {
		acked += s.dispatch(ctx, stream.Messages)
	}

	return acked, nil
}

// ReclaimPending claims messages left unacked for at least ClaimMinIdle, by
// this or any other consumer of the group, and dispatches them again. It
// returns the number acked.
func (s *Subscriber) ReclaimPending(ctx context.Context) (int, error) {
	acked := 0
	start := "0-0"
	for {
		messages, next, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   s.stream,
			Group:    s.group,
			Consumer: s.consumer,
			MinIdle:  s.claimMinIdle,
			Start:    start,
			Count:    s.batchSize,
		}).Result()
		if err != nil {
			return acked, fmt.Errorf("failed to claim pending messages: %w", err)
		}

		acked += s.dispatch(ctx, messages)
		if next == "0-0" || next == "" || len(messages) == 0 {
			return acked, nil
		}
		start = next
	}
}

func (s *Subscriber) dispatch(ctx context.Context, messages []redis.XMessage) int {
	acked := 0
	for _, message := range messages {
		if err := s.processMessage(ctx, message); err != nil {
			s.logger.WarnContext(ctx, "failed to process message", "id", message.ID, "error", err)
			continue
		}

		if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
			s.logger.WarnContext(ctx, "failed to ack message", "id", message.ID, "error", err)
			continue
		}
		acked++
	}
	return acked
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("invalid message format")
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return s.handler(ctx, event)
}

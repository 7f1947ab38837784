// Package presence keeps a Redis set of ONLINE user ids, projected from the
// user event stream.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/eaglebank/user-accounts/internal/events"
	"github.com/eaglebank/user-accounts/internal/models"
	goredis "github.com/redis/go-redis/v9"
)

const onlineKey = "users:online"

type Projector struct {
	client *goredis.Client
	logger *slog.Logger
}

func NewProjector(client *goredis.Client, logger *slog.Logger) *Projector {
	return &Projector{client: client, logger: logger}
}

// HandleUserEvent is the subscriber handler for events.UserEventsStream.
func (p *Projector) HandleUserEvent(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.UserCreated:
		var data events.UserCreatedEvent
		if err := event.Decode(&data); err != nil {
			return err
		}
		return p.apply(ctx, data.UserID, models.Status(data.Status))
	case events.UserStatusChanged:
		var data events.UserStatusChangedEvent
		if err := event.Decode(&data); err != nil {
			return err
		}
		return p.apply(ctx, data.UserID, models.Status(data.Status))
	}
	return nil
}

func (p *Projector) apply(ctx context.Context, userID int64, status models.Status) error {
	member := strconv.FormatInt(userID, 10)
	var err error
	switch status {
	case models.StatusOnline:
		err = p.client.SAdd(ctx, onlineKey, member).Err()
	case models.StatusOffline:
		err = p.client.SRem(ctx, onlineKey, member).Err()
	default:
		return fmt.Errorf("unknown status %q for user %d", status, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	p.logger.DebugContext(ctx, "presence updated", "userId", userID, "status", status)
	return nil
}

// Online returns the ids of users currently ONLINE, ascending.
func (p *Projector) Online(ctx context.Context) ([]int64, error) {
	members, err := p.client.SMembers(ctx, onlineKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			p.logger.WarnContext(ctx, "skipping malformed presence member", "member", m)
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

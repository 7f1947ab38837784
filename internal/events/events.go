package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	UserCreated       = "user.created"
	UserUpdated       = "user.updated"
	UserStatusChanged = "user.status_changed"
)

// Stream names
const (
	UserEventsStream = "user.events"
)

// Base event structure
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type UserCreatedEvent struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Status   string `json:"status"`
}

type UserUpdatedEvent struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	BirthDate string `json:"birthDate,omitempty"`
}

type UserStatusChangedEvent struct {
	UserID int64  `json:"userId"`
	Status string `json:"status"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", e.Type, err)
	}
	return nil
}

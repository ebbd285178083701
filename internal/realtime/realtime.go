// Package realtime carries row change events between writers and the
// session components that react to them. It is the service's equivalent of
// table change-subscriptions: a subscriber picks a table and a predicate and
// receives every matching insert, update or delete until it closes.
package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TableProfiles      = "profiles"
	TableConnections   = "connections"
	TableNotifications = "notifications"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent describes one changed row. UserID is the row's owning user:
// the profile id, a connection's initiator or a notification's recipient.
type ChangeEvent struct {
	Table    string    `json:"table"`
	Type     EventType `json:"type"`
	RecordID uuid.UUID `json:"record_id"`
	UserID   uuid.UUID `json:"user_id"`
	At       time.Time `json:"at"`
}

type Filter func(ChangeEvent) bool

// ExceptUser matches rows not owned by id.
func ExceptUser(id uuid.UUID) Filter {
	return func(ev ChangeEvent) bool { return ev.UserID != id }
}

// ForUser matches rows owned by id.
func ForUser(id uuid.UUID) Filter {
	return func(ev ChangeEvent) bool { return ev.UserID == id }
}

type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent) error
}

type Subscription interface {
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, table string, filter Filter, handle func(ChangeEvent)) (Subscription, error)
}

func matches(filter Filter, ev ChangeEvent) bool {
	return filter == nil || filter(ev)
}

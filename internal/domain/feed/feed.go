// Package feed defines the change-feed vocabulary: row-level insert, update
// and delete notifications for the order tables, filtered by equality on a
// column. Delivery is at-most-once and unordered across entities.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity is a table that emits changes
type Entity string

const (
	EntityOrder            Entity = "order"
	EntityOrderItem        Entity = "order_item"
	EntityDeliveryTracking Entity = "delivery_tracking"
)

// IsValid checks if the entity is a known value
func (e Entity) IsValid() bool {
	return e == EntityOrder || e == EntityOrderItem || e == EntityDeliveryTracking
}

// Entities lists every entity that emits changes
func Entities() []Entity {
	return []Entity{EntityOrder, EntityOrderItem, EntityDeliveryTracking}
}

// EventType is the kind of row change
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// AllEvents lists insert, update and delete
func AllEvents() []EventType {
	return []EventType{EventInsert, EventUpdate, EventDelete}
}

// Change is one row-level notification. New is absent for deletes, Old is
// optional for updates.
type Change struct {
	ID         uuid.UUID       `json:"id"`
	Entity     Entity          `json:"entity"`
	Type       EventType       `json:"type"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
	CommitTime time.Time       `json:"commit_time"`
}

// NewChange builds a change from typed rows. Either row may be nil.
func NewChange(entity Entity, typ EventType, newRow, oldRow any, at time.Time) (Change, error) {
	c := Change{ID: uuid.New(), Entity: entity, Type: typ, CommitTime: at}
	var err error
	if newRow != nil {
		if c.New, err = json.Marshal(newRow); err != nil {
			return Change{}, fmt.Errorf("encode new row: %w", err)
		}
	}
	if oldRow != nil {
		if c.Old, err = json.Marshal(oldRow); err != nil {
			return Change{}, fmt.Errorf("encode old row: %w", err)
		}
	}
	return c, nil
}

// Row returns the row the change is about: New, or Old for deletes
func (c Change) Row() json.RawMessage {
	if len(c.New) > 0 {
		return c.New
	}
	return c.Old
}

// Filter is an equality condition on a row column. The zero Filter matches
// every row.
type Filter struct {
	Column string
	Value  string
}

// Eq creates an equality filter
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// IsZero reports whether the filter matches everything
func (f Filter) IsZero() bool {
	return f.Column == ""
}

// Matches reports whether the change's row satisfies the filter
func (f Filter) Matches(c Change) bool {
	if f.IsZero() {
		return true
	}
	var row map[string]any
	if err := json.Unmarshal(c.Row(), &row); err != nil {
		return false
	}
	v, ok := row[f.Column]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == f.Value
}

// Subscription describes what a channel receives. Empty Events means all.
type Subscription struct {
	Entity Entity
	Events []EventType
	Filter Filter
}

// Accepts reports whether the subscription wants the change
func (s Subscription) Accepts(c Change) bool {
	if c.Entity != s.Entity {
		return false
	}
	if len(s.Events) > 0 {
		found := false
		for _, e := range s.Events {
			if e == c.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return s.Filter.Matches(c)
}

// Channel is an open subscription. Close unsubscribes; after it returns no
// more changes are delivered and C is closed.
type Channel interface {
	C() <-chan Change
	Close() error
}

// Publisher emits changes after a write to the remote store
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Feed opens subscriptions
type Feed interface {
	Subscribe(ctx context.Context, sub Subscription) (Channel, error)
}

// Transport is a change feed that can both publish and subscribe
type Transport interface {
	Publisher
	Feed
	Close() error
}

// Package events carries lifecycle notifications out of the order subsystem.
// Delivery is best effort: publishers log failures and never fail the
// operation that produced the event.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	TableReserved = "table.reserved"
	TableReleased = "table.released"
	TableFlagged  = "table.flagged"
	TableResolved = "table.resolved"

	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"

	RequestCreated   = "request.created"
	RequestApproved  = "request.approved"
	RequestRejected  = "request.rejected"
	RequestSeated    = "request.seated"
	RequestCompleted = "request.completed"
)

type Event struct {
	Type         string      `json:"type"`
	RestaurantID string      `json:"restaurant_id,omitempty"`
	OrderID      *uint       `json:"order_id,omitempty"`
	RequestID    *uint       `json:"request_id,omitempty"`
	TableID      *uint       `json:"table_id,omitempty"`
	Status       string      `json:"status,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
	Data         interface{} `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

// Multi fans an event out to several publishers in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}

// Recorder keeps published events in memory. Tests use it to assert on side effects.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
}

// Count returns how many recorded events have the given type.
func (r *Recorder) Count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func UintPtr(v uint) *uint {
	return &v
}

// Package events publishes visit lifecycle events to an append-only
// audit stream. The engine only produces events; nothing in-process
// consumes them.
package events

import (
	"context"
	"time"

	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
)

// Event types emitted by the queue engine.
const (
	TypeCheckedIn       = "visit.checked_in"
	TypeStarted         = "visit.started"
	TypeCompleted       = "visit.completed"
	TypeNotesUpdated    = "visit.notes_updated"
	TypePriorityChanged = "visit.priority_changed"
	TypeMarkedEmergency = "visit.marked_emergency"
	TypeExpired         = "visit.expired"
)

// Event is one entry in the visit audit stream.
type Event struct {
	ID        types.ID       `json:"id"`
	Type      string         `json:"type"`
	VisitID   types.ID       `json:"visit_id"`
	StudentID string         `json:"student_id"`
	ActorID   types.ID       `json:"actor_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher publishes events. Implementations must be safe for
// concurrent use by request handlers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
	Health(ctx context.Context) error
}

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/walletd/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records event. Missing ID and Timestamp are filled in.
	Log(ctx context.Context, event *Event) error

	// Search returns matching events, newest first.
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// NewEvent builds an event attributed to the actor and request carried by ctx.
func NewEvent(ctx context.Context, action Action, resourceType ResourceType, resourceID string) *Event {
	return &Event{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Action:       action,
		ActorID:      contextkeys.GetActorID(ctx),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    contextkeys.GetRequestID(ctx),
	}
}

func prepare(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
}

// NoOpLogger discards events.
type NoOpLogger struct{}

func (NoOpLogger) Log(context.Context, *Event) error { return nil }

func (NoOpLogger) Search(context.Context, SearchFilter) ([]*Event, error) { return []*Event{}, nil }

func (NoOpLogger) Close() error { return nil }

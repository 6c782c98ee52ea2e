package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes every event as a structured log line. It cannot be
// searched and is meant to be combined with a queryable logger through
// MultiLogger.
type LogrusLogger struct {
	logger logrus.FieldLogger
}

// NewLogrusLogger creates a LogrusLogger writing to logger.
func NewLogrusLogger(logger logrus.FieldLogger) *LogrusLogger {
	return &LogrusLogger{logger: logger.WithField("component", "audit")}
}

func (l *LogrusLogger) Log(_ context.Context, event *Event) error {
	prepare(event)
	fields := logrus.Fields{
		"audit_id":        event.ID,
		"action":          event.Action,
		"actor_id":        event.ActorID,
		"organization_id": event.OrganizationID,
		"resource_type":   event.ResourceType,
		"resource_id":     event.ResourceID,
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Changes != nil {
		fields["before"] = event.Changes.Before
		fields["after"] = event.Changes.After
	}
	msg := event.Message
	if msg == "" {
		msg = "Audit event"
	}
	l.logger.WithFields(fields).Info(msg)
	return nil
}

func (l *LogrusLogger) Search(context.Context, SearchFilter) ([]*Event, error) {
	return []*Event{}, nil
}

func (l *LogrusLogger) Close() error { return nil }

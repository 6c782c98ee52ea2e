package audit

import (
	"context"
	"errors"
)

// MultiLogger logs to multiple audit loggers. Searches are answered by the
// first logger, which should be the queryable one.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a new multi-logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes event to every logger, continuing past failures.
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	prepare(event)
	var errs []error
	for _, l := range m.loggers {
		if err := l.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	if len(m.loggers) == 0 {
		return []*Event{}, nil
	}
	return m.loggers[0].Search(ctx, filter)
}

// Close closes every logger.
func (m *MultiLogger) Close() error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryLogger keeps events in process. It backs the in-memory storage
// mode and tests.
type MemoryLogger struct {
	mu     sync.RWMutex
	events []*Event
}

// NewMemoryLogger creates an empty MemoryLogger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (l *MemoryLogger) Log(_ context.Context, event *Event) error {
	prepare(event)
	c := *event
	l.mu.Lock()
	l.events = append(l.events, &c)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLogger) Search(_ context.Context, filter SearchFilter) ([]*Event, error) {
	l.mu.RLock()
	out := []*Event{}
	for _, e := range l.events {
		if filter.matches(e) {
			c := *e
			out = append(out, &c)
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit := filter.limit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *MemoryLogger) Close() error { return nil }

package mocks

import (
	"context"
	"sync"

	"github.com/sokomart/marketplace-api/internal/domain"
)

// EventRecorder captures published domain events for assertions.
type EventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *EventRecorder) Publish(ctx context.Context, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *EventRecorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Event, len(r.events))
	copy(out, r.events)

	return out
}

func (r *EventRecorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]string, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind()
	}

	return kinds
}

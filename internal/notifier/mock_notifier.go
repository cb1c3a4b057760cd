package notifier

import (
	"sync"
)

// Notification records a notification that would have been delivered.
type Notification struct {
	EventKind    string
	RecipientRef string
	Data         any
}

// MockNotifier records notifications for assertions in tests.
type MockNotifier struct {
	mu            sync.RWMutex
	notifications []Notification
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		notifications: make([]Notification, 0),
	}
}

func (m *MockNotifier) Notify(eventKind, recipientRef string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notifications = append(m.notifications, Notification{
		EventKind:    eventKind,
		RecipientRef: recipientRef,
		Data:         data,
	})

	return nil
}

func (m *MockNotifier) Notifications() []Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Notification, len(m.notifications))
	copy(out, m.notifications)

	return out
}

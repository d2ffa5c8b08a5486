package mocks

import (
	"sync"

	"github.com/mcoot/paddleduel/internal/dependencies/notifier"
	"github.com/mcoot/paddleduel/internal/model"
)

// SentEvent is an event recorded by MockNotifier
type SentEvent struct {
	To    model.ConnectionID
	Event model.Event
}

// MockNotifier records every event instead of delivering it
type MockNotifier struct {
	mu   sync.Mutex
	sent []SentEvent
}

// Ensure MockNotifier implements Notifier
var _ notifier.Notifier = (*MockNotifier)(nil)

// NewMockNotifier creates an empty MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send records the event
func (n *MockNotifier) Send(connID model.ConnectionID, event model.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentEvent{To: connID, Event: event})
}

// Broadcast records one event per recipient
func (n *MockNotifier) Broadcast(connIDs []model.ConnectionID, event model.Event) {
	for _, id := range connIDs {
		n.Send(id, event)
	}
}

// Sent returns a copy of all recorded events
func (n *MockNotifier) Sent() []SentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]SentEvent, len(n.sent))
	copy(out, n.sent)
	return out
}

// EventsFor returns the events sent to one connection
func (n *MockNotifier) EventsFor(connID model.ConnectionID) []model.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.Event
	for _, s := range n.sent {
		if s.To == connID {
			out = append(out, s.Event)
		}
	}
	return out
}

// OfType returns all recorded events of the given type
func (n *MockNotifier) OfType(t model.EventType) []SentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []SentEvent
	for _, s := range n.sent {
		if s.Event.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// Reset clears all recorded events
func (n *MockNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

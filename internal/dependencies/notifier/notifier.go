package notifier

import "github.com/mcoot/paddleduel/internal/model"

// Notifier delivers events to live connections. Delivery is best effort:
// events for unknown or closed connections are dropped.
type Notifier interface {
	Send(connID model.ConnectionID, event model.Event)
	Broadcast(connIDs []model.ConnectionID, event model.Event)
}

// Nop discards every event
type Nop struct{}

// Send does nothing
func (Nop) Send(model.ConnectionID, model.Event) {}

// Broadcast does nothing
func (Nop) Broadcast([]model.ConnectionID, model.Event) {}

package event

import "context"

// Publisher announces events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
}

// Nop discards every event.
type Nop struct{}

// compile-time interface check.
var _ Publisher = Nop{}

// Publish does nothing.
func (Nop) Publish(context.Context, *Event) error { return nil }

// Package event describes what smsrelay announces after a registration or a
// successful relay, and the Publisher contract used to announce it.
package event

import (
	"time"

	"github.com/xraph/smsrelay/id"
)

// Type names an event. Types are dot-separated, e.g. "sms.relayed".
type Type string

// Event types.
const (
	DeviceRegistered Type = "device.registered"
	DeviceUpdated    Type = "device.updated"
	MessageRelayed   Type = "message.relayed"
	SMSRelayed       Type = "sms.relayed"
)

// Event is a notification about something smsrelay did. It never carries bot
// tokens or message bodies.
type Event struct {
	// ID is the unique "evt_" identifier for this event.
	ID id.ID `json:"id"`

	Type Type `json:"type"`

	// DeviceID is empty for direct sendToTelegram relays.
	DeviceID string `json:"device_id,omitempty"`

	ChatID string `json:"chat_id,omitempty"`

	// Sender is the SMS originator for sms.relayed events.
	Sender string `json:"sender,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// New returns an event of type t with a fresh ID and the current UTC time.
func New(t Type) *Event {
	return &Event{
		ID:         id.NewEventID(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
	}
}

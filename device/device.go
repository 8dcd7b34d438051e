// Package device defines registered SMS-forwarding devices and the
// persistence contract for them.
package device

import "github.com/xraph/smsrelay/internal/entity"

// Device is a client endpoint that forwards SMS to smsrelay, together with
// the Telegram routing credentials its notifications are relayed with.
type Device struct {
	entity.Entity

	// ID is the client-chosen unique device identifier.
	ID string `json:"device_id"`

	// BotToken is the Telegram bot token. Never serialized.
	BotToken string `json:"-"`

	// ChatID is the destination Telegram chat (numeric ID or @channel).
	ChatID string `json:"chat_id"`
}

// Clone returns a copy of d that shares no state with it.
func (d *Device) Clone() *Device {
	c := *d
	return &c
}

// Package entity defines the base entity type for smsrelay domain objects.
package entity

import "time"

// Entity carries the creation and last-modification timestamps shared by
// every registry record.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an Entity with both timestamps set to the current UTC time.
func New() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch advances UpdatedAt to the current UTC time, leaving CreatedAt alone.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

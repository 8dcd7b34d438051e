// Package memory provides the in-process Store implementation.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/device"
	"github.com/xraph/smsrelay/internal/entity"
	relaystore "github.com/xraph/smsrelay/store"
)

// compile-time interface check.
var _ relaystore.Store = (*Store)(nil)

// Store keeps device registrations in a map guarded by a RWMutex.
// Each upsert replaces a record as a whole, so readers never observe a
// registration mixing fields from two writers.
type Store struct {
	mu sync.RWMutex

	devices map[string]*device.Device // keyed by device ID
	order   []string                  // device IDs in registration order

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		devices: make(map[string]*device.Device),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Ping returns ErrStoreClosed once the store has been closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return smsrelay.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// device.Store
// ──────────────────────────────────────────────────

// UpsertDevice inserts or replaces a registration.
func (s *Store) UpsertDevice(_ context.Context, dev *device.Device) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, smsrelay.ErrStoreClosed
	}

	if existing, ok := s.devices[dev.ID]; ok {
		updated := dev.Clone()
		updated.CreatedAt = existing.CreatedAt
		updated.Touch()
		s.devices[dev.ID] = updated
		return false, nil
	}

	stored := dev.Clone()
	if stored.CreatedAt.IsZero() {
		stored.Entity = entity.New()
	}
	s.devices[dev.ID] = stored
	s.order = append(s.order, dev.ID)
	return true, nil
}

// GetDevice returns a copy of the registration for deviceID.
func (s *Store) GetDevice(_ context.Context, deviceID string) (*device.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, smsrelay.ErrStoreClosed
	}

	dev, ok := s.devices[deviceID]
	if !ok {
		return nil, smsrelay.ErrDeviceNotFound
	}
	return dev.Clone(), nil
}

// ListDevices returns copies of every registration in registration order.
func (s *Store) ListDevices(_ context.Context) ([]*device.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, smsrelay.ErrStoreClosed
	}

	result := make([]*device.Device, 0, len(s.order))
	for _, deviceID := range s.order {
		result = append(result, s.devices[deviceID].Clone())
	}
	return result, nil
}

// CountDevices returns the number of registrations.
func (s *Store) CountDevices(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, smsrelay.ErrStoreClosed
	}
	return len(s.devices), nil
}

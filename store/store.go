// Package store defines the composite Store interface for smsrelay persistence.
//
// Registrations live for the lifetime of the process; the only implementation
// is store/memory.
package store

import (
	"context"

	"github.com/xraph/smsrelay/device"
)

// Store is the aggregate persistence interface.
type Store interface {
	device.Store

	// Ping checks that the store is usable.
	Ping(ctx context.Context) error

	// Close releases the store. Later operations return smsrelay.ErrStoreClosed.
	Close() error
}

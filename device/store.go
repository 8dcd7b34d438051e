package device

import "context"

// Store defines the persistence contract for device registrations.
type Store interface {
	// UpsertDevice inserts dev, or replaces the credentials of the existing
	// registration with the same ID. created reports which of the two happened.
	UpsertDevice(ctx context.Context, dev *Device) (created bool, err error)

	// GetDevice returns the registration for deviceID, or
	// smsrelay.ErrDeviceNotFound.
	GetDevice(ctx context.Context, deviceID string) (*Device, error)

	// ListDevices returns every registration in registration order.
	ListDevices(ctx context.Context) ([]*Device, error)

	// CountDevices returns the number of registrations.
	CountDevices(ctx context.Context) (int, error)
}

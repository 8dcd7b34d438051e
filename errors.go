package smsrelay

import (
	"errors"
	"strings"
)

// Sentinel errors returned by smsrelay operations.
var (
	// ErrNoStore is returned when a Relay is created without a store.
	ErrNoStore = errors.New("smsrelay: store is required")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("smsrelay: validation failed")

	// ErrDeviceNotFound is returned when a device ID has no registration.
	ErrDeviceNotFound = errors.New("smsrelay: device not found")

	// ErrRelayFailed is matched by every *RelayError.
	ErrRelayFailed = errors.New("smsrelay: relay failed")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("smsrelay: store is closed")

	// ErrUnauthorized is returned when the shared secret is missing or wrong.
	ErrUnauthorized = errors.New("smsrelay: unauthorized")

	// ErrRateLimited is returned when a source address exhausts its request window.
	ErrRateLimited = errors.New("smsrelay: rate limit exceeded")
)

// ValidationError lists the required fields that were missing or empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "smsrelay: missing required fields: " + strings.Join(e.Fields, ", ")
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RelayError wraps a failed outbound call to the messaging platform.
type RelayError struct {
	Err error
}

func (e *RelayError) Error() string {
	return "smsrelay: relay failed: " + e.Err.Error()
}

// Unwrap returns the underlying client error.
func (e *RelayError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRelayFailed.
func (e *RelayError) Is(target error) bool {
	return target == ErrRelayFailed
}

// requireFields returns a *ValidationError naming every empty value, in the
// order given, or nil when all are present.
func requireFields(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Fields: missing}
}

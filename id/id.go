// Package id defines prefixed identifiers for smsrelay requests and events.
//
// Every ID is a UUIDv7 (K-sortable, globally unique) rendered as
// "prefix_<32 hex chars>", e.g. "req_0192f3a1c2d47e6b9a0c1d2e3f405162".
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix identifies the kind of thing an ID names.
type Prefix string

// Prefix constants.
const (
	PrefixRequest Prefix = "req"
	PrefixEvent   Prefix = "evt"
)

// ID is a prefix-qualified UUIDv7.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receiver for UnmarshalText.
type ID struct {
	prefix Prefix
	inner  uuid.UUID
	valid  bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix.
// It panics if the prefix is empty or contains an underscore (programming error).
func New(prefix Prefix) ID {
	if prefix == "" || strings.Contains(string(prefix), "_") {
		panic(fmt.Sprintf("id: invalid prefix %q", prefix))
	}

	u, err := uuid.NewV7()
	if err != nil {
		panic(fmt.Sprintf("id: generate uuidv7: %v", err))
	}

	return ID{prefix: prefix, inner: u, valid: true}
}

// Parse parses a "prefix_suffix" string into an ID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	idx := strings.LastIndexByte(s, '_')
	if idx <= 0 || idx == len(s)-1 {
		return Nil, fmt.Errorf("id: parse %q: missing prefix", s)
	}

	u, err := uuid.Parse(s[idx+1:])
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{prefix: Prefix(s[:idx]), inner: u, valid: true}, nil
}

// ParseWithPrefix parses s and checks that its prefix matches expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.prefix != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.prefix)
	}

	return parsed, nil
}

// NewRequestID generates a new request ID.
func NewRequestID() ID { return New(PrefixRequest) }

// NewEventID generates a new event ID.
func NewEventID() ID { return New(PrefixEvent) }

// ParseRequestID parses s and validates the "req" prefix.
func ParseRequestID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRequest) }

// ParseEventID parses s and validates the "evt" prefix.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// String returns "prefix_suffix", or "" for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return string(i.prefix) + "_" + strings.ReplaceAll(i.inner.String(), "-", "")
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return i.prefix
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

package api

import "time"

// Config holds the HTTP surface settings.
type Config struct {
	// APIKey is the shared secret every /api route requires in X-Api-Key.
	APIKey string

	// RateLimitWindow is the rolling window for per-address limits.
	RateLimitWindow time.Duration

	// RateLimitMax is how many /api requests one address may make per
	// window. Zero disables limiting.
	RateLimitMax int

	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
}

// DefaultConfig returns a Config with sensible defaults. APIKey has no
// default and must be set.
func DefaultConfig() Config {
	return Config{
		RateLimitWindow: 15 * time.Minute,
		RateLimitMax:    100,
		MaxBodyBytes:    1 << 20,
	}
}

package smsrelay

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Version is the service version reported by the root route.
// Overridden at build time with -ldflags "-X github.com/xraph/smsrelay.Version=...".
var Version = "1.0.0"

// Config holds the configuration for a Relay instance.
type Config struct {
	// TelegramEndpoint is the Bot API URL format, with the bot token and
	// method name as its two %s verbs.
	TelegramEndpoint string

	// RelayTimeout bounds each outbound relay call.
	// Zero keeps the HTTP transport default.
	RelayTimeout time.Duration

	// TimeZone is the IANA zone used to render SMS timestamps.
	TimeZone string

	// TimeLayout is the Go time layout used to render SMS timestamps.
	TimeLayout string

	// Version is reported by the service root route.
	Version string
}

// DefaultTimeLayout renders timestamps as "1/2/2006, 3:04:05 PM".
const DefaultTimeLayout = "1/2/2006, 3:04:05 PM"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TelegramEndpoint: tgbotapi.APIEndpoint,
		TimeZone:         "UTC",
		TimeLayout:       DefaultTimeLayout,
		Version:          Version,
	}
}

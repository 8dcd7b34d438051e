// Package config loads smsrelay runtime configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/api"
)

const (
	EnvHost               = "HOST"
	EnvPort               = "PORT"
	EnvAPIKey             = "API_KEY"
	EnvTelegramEndpoint   = "TELEGRAM_API_ENDPOINT"
	EnvRelayTimeout       = "RELAY_TIMEOUT"
	EnvTimeZone           = "TIME_ZONE"
	EnvTimeLayout         = "TIME_LAYOUT"
	EnvRateLimitWindow    = "RATE_LIMIT_WINDOW"
	EnvRateLimitMax       = "RATE_LIMIT_MAX"
	EnvTrustProxy         = "TRUST_PROXY"
	EnvMaxBodyBytes       = "MAX_BODY_BYTES"
	EnvRedisURL           = "REDIS_URL"
	EnvEventChannelPrefix = "EVENT_CHANNEL_PREFIX"
	EnvMetricsAddr        = "METRICS_ADDR"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
	EnvReadTimeout        = "READ_TIMEOUT"
	EnvWriteTimeout       = "WRITE_TIMEOUT"
	EnvIdleTimeout        = "IDLE_TIMEOUT"
	EnvShutdownTimeout    = "SHUTDOWN_TIMEOUT"
	EnvTracesExporter     = "TRACES_EXPORTER"

	MinPortNumber = 1
	MaxPortNumber = 65535

	LogFormatText = "text"
	LogFormatJSON = "json"

	TracesNone   = "none"
	TracesStdout = "stdout"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Config is the full runtime configuration.
type Config struct {
	Server ServerConfig
	API    api.Config
	Relay  smsrelay.Config

	// RedisURL enables event publishing when set.
	RedisURL           string
	EventChannelPrefix string

	// MetricsAddr is the Prometheus listener address. Empty disables it.
	MetricsAddr string

	LogLevel  slog.Level
	LogFormat string

	// TracesExporter selects where relay spans go: "none" or "stdout".
	TracesExporter string
}

// Load reads envFile (when it exists) into the process environment without
// overriding variables that are already set, then builds and validates the
// configuration.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from environment variables.
func FromEnv() (Config, error) {
	relayCfg := smsrelay.DefaultConfig()
	apiCfg := api.DefaultConfig()

	p := &parser{}
	cfg := Config{
		Server: ServerConfig{
			Host:            envOrDefault(EnvHost, "0.0.0.0"),
			Port:            p.getInt(EnvPort, 3000),
			ReadTimeout:     p.getDuration(EnvReadTimeout, 15*time.Second),
			WriteTimeout:    p.getDuration(EnvWriteTimeout, 30*time.Second),
			IdleTimeout:     p.getDuration(EnvIdleTimeout, 60*time.Second),
			ShutdownTimeout: p.getDuration(EnvShutdownTimeout, 10*time.Second),
		},
		API: api.Config{
			APIKey:          strings.TrimSpace(os.Getenv(EnvAPIKey)),
			RateLimitWindow: p.getDuration(EnvRateLimitWindow, apiCfg.RateLimitWindow),
			RateLimitMax:    p.getInt(EnvRateLimitMax, apiCfg.RateLimitMax),
			TrustProxy:      p.getBool(EnvTrustProxy, false),
			MaxBodyBytes:    int64(p.getInt(EnvMaxBodyBytes, int(apiCfg.MaxBodyBytes))),
		},
		Relay: smsrelay.Config{
			TelegramEndpoint: envOrDefault(EnvTelegramEndpoint, relayCfg.TelegramEndpoint),
			RelayTimeout:     p.getDuration(EnvRelayTimeout, relayCfg.RelayTimeout),
			TimeZone:         envOrDefault(EnvTimeZone, relayCfg.TimeZone),
			TimeLayout:       envOrDefault(EnvTimeLayout, relayCfg.TimeLayout),
			Version:          relayCfg.Version,
		},
		RedisURL:           strings.TrimSpace(os.Getenv(EnvRedisURL)),
		EventChannelPrefix: envOrDefault(EnvEventChannelPrefix, "smsrelay"),
		MetricsAddr:        strings.TrimSpace(os.Getenv(EnvMetricsAddr)),
		LogLevel:           p.getLevel(EnvLogLevel, slog.LevelInfo),
		LogFormat:          strings.ToLower(envOrDefault(EnvLogFormat, LogFormatText)),
		TracesExporter:     strings.ToLower(envOrDefault(EnvTracesExporter, TracesNone)),
	}

	if p.err != nil {
		return Config{}, p.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("invalid %s: must not be empty", EnvHost)
	}
	if c.Server.Port < MinPortNumber || c.Server.Port > MaxPortNumber {
		return fmt.Errorf("invalid %s: must be in range %d..%d", EnvPort, MinPortNumber, MaxPortNumber)
	}
	if c.API.APIKey == "" {
		return fmt.Errorf("invalid %s: must not be empty", EnvAPIKey)
	}
	if c.API.RateLimitMax < 0 {
		return fmt.Errorf("invalid %s: must be >= 0", EnvRateLimitMax)
	}
	if c.API.RateLimitMax > 0 && c.API.RateLimitWindow <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvRateLimitWindow)
	}
	if c.API.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvMaxBodyBytes)
	}
	if c.Relay.RelayTimeout < 0 {
		return fmt.Errorf("invalid %s: must be >= 0", EnvRelayTimeout)
	}
	if strings.Count(c.Relay.TelegramEndpoint, "%s") != 2 {
		return fmt.Errorf("invalid %s: must contain two %%s verbs (token, method)", EnvTelegramEndpoint)
	}
	if _, err := time.LoadLocation(c.Relay.TimeZone); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvTimeZone, err)
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("invalid %s: must be %q or %q", EnvLogFormat, LogFormatText, LogFormatJSON)
	}
	if c.TracesExporter != TracesNone && c.TracesExporter != TracesStdout {
		return fmt.Errorf("invalid %s: must be %q or %q", EnvTracesExporter, TracesNone, TracesStdout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid %s: must be > 0", EnvShutdownTimeout)
	}
	return nil
}

// parser records the first malformed variable it sees.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (p *parser) getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) getBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

// getDuration accepts Go durations ("15m") or plain seconds ("900").
func (p *parser) getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}

func (p *parser) getLevel(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return l
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

package smsrelay

import (
	"log/slog"
	"time"

	"github.com/xraph/smsrelay/event"
	"github.com/xraph/smsrelay/observability"
	"github.com/xraph/smsrelay/sms"
	"github.com/xraph/smsrelay/store"
	"github.com/xraph/smsrelay/telegram"
)

// Relay is the root SMS-to-Telegram relay service.
type Relay struct {
	config    Config
	store     store.Store
	sender    telegram.Sender
	formatter *sms.Formatter
	publisher event.Publisher
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Relay instance.
type Option func(*Relay) error

// New creates a new Relay with the given options.
func New(opts ...Option) (*Relay, error) {
	r := &Relay{
		config: DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.store == nil {
		return nil, ErrNoStore
	}
	if err := r.wireServices(); err != nil {
		return nil, err
	}
	return r, nil
}

// WithStore sets the device registry backend.
func WithStore(s store.Store) Option {
	return func(r *Relay) error {
		r.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Relay instance.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) error {
		r.logger = logger
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(r *Relay) error {
		r.config = cfg
		return nil
	}
}

// WithSender overrides the Telegram client. By default one is built from
// the configured endpoint and timeout.
func WithSender(s telegram.Sender) Option {
	return func(r *Relay) error {
		r.sender = s
		return nil
	}
}

// WithPublisher sets where relay events are announced. Defaults to event.Nop.
func WithPublisher(p event.Publisher) Option {
	return func(r *Relay) error {
		r.publisher = p
		return nil
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Relay) error {
		r.metrics = m
		return nil
	}
}

// WithTracer sets the tracer used for relay spans. Defaults to one backed by
// the global OpenTelemetry provider.
func WithTracer(t *observability.Tracer) Option {
	return func(r *Relay) error {
		r.tracer = t
		return nil
	}
}

// WithClock overrides the time source used when an SMS carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) error {
		r.now = now
		return nil
	}
}

// WithTelegramEndpoint sets the Bot API URL format.
func WithTelegramEndpoint(endpoint string) Option {
	return func(r *Relay) error {
		r.config.TelegramEndpoint = endpoint
		return nil
	}
}

// WithRelayTimeout bounds each outbound relay call.
func WithRelayTimeout(d time.Duration) Option {
	return func(r *Relay) error {
		r.config.RelayTimeout = d
		return nil
	}
}

// WithTimeZone sets the IANA zone SMS timestamps are rendered in.
func WithTimeZone(zone string) Option {
	return func(r *Relay) error {
		r.config.TimeZone = zone
		return nil
	}
}

// WithTimeLayout sets the Go layout SMS timestamps are rendered with.
func WithTimeLayout(layout string) Option {
	return func(r *Relay) error {
		r.config.TimeLayout = layout
		return nil
	}
}

package smsrelay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/smsrelay/device"
	"github.com/xraph/smsrelay/event"
	"github.com/xraph/smsrelay/internal/entity"
	"github.com/xraph/smsrelay/observability"
	"github.com/xraph/smsrelay/sms"
	"github.com/xraph/smsrelay/store"
	"github.com/xraph/smsrelay/telegram"
)

const publishTimeout = 5 * time.Second

// SendInput is a direct relay request.
type SendInput struct {
	BotToken string
	ChatID   string
	Message  string
}

// RegisterInput binds a device ID to Telegram credentials.
type RegisterInput struct {
	DeviceID string
	BotToken string
	ChatID   string
}

// SMSInput is an SMS received by a registered device.
type SMSInput struct {
	DeviceID string
	Sender   string
	Message  string

	// Timestamp is epoch milliseconds. Nil or zero means "now".
	Timestamp *int64
}

// wireServices initializes the internal services after options have been applied.
func (r *Relay) wireServices() error {
	formatter, err := sms.NewFormatter(r.config.TimeZone, r.config.TimeLayout)
	if err != nil {
		return fmt.Errorf("smsrelay: time zone %q: %w", r.config.TimeZone, err)
	}
	r.formatter = formatter

	if r.sender == nil {
		r.sender = telegram.NewClient(
			telegram.WithEndpoint(r.config.TelegramEndpoint),
			telegram.WithTimeout(r.config.RelayTimeout),
		)
	}
	if r.publisher == nil {
		r.publisher = event.Nop{}
	}
	if r.tracer == nil {
		r.tracer = observability.NewTracer(nil)
	}
	return nil
}

// SendToTelegram relays in.Message verbatim to in.ChatID. The registry is
// not consulted.
func (r *Relay) SendToTelegram(ctx context.Context, in SendInput) error {
	if err := requireFields(
		"botToken", in.BotToken,
		"chatId", in.ChatID,
		"message", in.Message,
	); err != nil {
		return err
	}

	if err := r.relay(ctx, observability.KindDirect, "", in.BotToken, in.ChatID, in.Message); err != nil {
		return err
	}

	evt := event.New(event.MessageRelayed)
	evt.ChatID = in.ChatID
	r.publish(ctx, evt)

	return nil
}

// RegisterDevice stores the credentials for in.DeviceID, replacing any
// earlier registration. created reports whether the ID was new.
func (r *Relay) RegisterDevice(ctx context.Context, in RegisterInput) (bool, error) {
	if err := requireFields(
		"deviceId", in.DeviceID,
		"botToken", in.BotToken,
		"chatId", in.ChatID,
	); err != nil {
		return false, err
	}

	dev := &device.Device{
		Entity:   entity.New(),
		ID:       in.DeviceID,
		BotToken: in.BotToken,
		ChatID:   in.ChatID,
	}

	created, err := r.store.UpsertDevice(ctx, dev)
	if err != nil {
		return false, fmt.Errorf("smsrelay: register device: %w", err)
	}

	if r.metrics != nil {
		if n, countErr := r.store.CountDevices(ctx); countErr == nil {
			r.metrics.DevicesRegistered.Set(float64(n))
		}
	}

	r.logger.InfoContext(ctx, "device registered",
		"device_id", in.DeviceID,
		"chat_id", in.ChatID,
		"created", created,
	)

	evt := event.New(event.DeviceUpdated)
	if created {
		evt.Type = event.DeviceRegistered
	}
	evt.DeviceID = in.DeviceID
	evt.ChatID = in.ChatID
	r.publish(ctx, evt)

	return created, nil
}

// ProcessSMS formats an inbound SMS and relays it with the credentials
// registered for in.DeviceID. An unknown device fails with
// ErrDeviceNotFound before any outbound call.
func (r *Relay) ProcessSMS(ctx context.Context, in SMSInput) error {
	if err := requireFields(
		"deviceId", in.DeviceID,
		"sender", in.Sender,
		"message", in.Message,
	); err != nil {
		return err
	}

	dev, err := r.store.GetDevice(ctx, in.DeviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, in.DeviceID)
		}
		return fmt.Errorf("smsrelay: lookup device: %w", err)
	}

	text := r.formatter.Format(sms.Message{
		DeviceID:   dev.ID,
		Sender:     in.Sender,
		Text:       in.Message,
		ReceivedAt: sms.TimeFromMillis(in.Timestamp, r.now),
	})

	if err := r.relay(ctx, observability.KindSMS, dev.ID, dev.BotToken, dev.ChatID, text); err != nil {
		return err
	}

	evt := event.New(event.SMSRelayed)
	evt.DeviceID = dev.ID
	evt.ChatID = dev.ChatID
	evt.Sender = in.Sender
	r.publish(ctx, evt)

	return nil
}

// relay performs exactly one outbound call, traced and measured.
func (r *Relay) relay(ctx context.Context, kind, deviceID, botToken, chatID, text string) error {
	ctx, span := r.tracer.StartRelaySpan(ctx, kind, deviceID, chatID)
	start := time.Now()

	err := r.sender.Send(ctx, botToken, chatID, text)

	r.tracer.EndRelaySpan(span, err)
	if r.metrics != nil {
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeFailure
		}
		r.metrics.RecordRelay(kind, outcome, time.Since(start).Seconds())
	}

	if err != nil {
		r.logger.WarnContext(ctx, "relay failed",
			"kind", kind,
			"device_id", deviceID,
			"chat_id", chatID,
			"error", err,
		)
		return &RelayError{Err: err}
	}

	r.logger.DebugContext(ctx, "message relayed",
		"kind", kind,
		"device_id", deviceID,
		"chat_id", chatID,
	)
	return nil
}

// publish announces evt. Failures are logged and never reach the caller.
func (r *Relay) publish(ctx context.Context, evt *event.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, evt); err != nil {
		r.logger.WarnContext(ctx, "event publish failed",
			"event_id", evt.ID,
			"type", evt.Type,
			"error", err,
		)
	}
}

// Devices returns the device registry.
func (r *Relay) Devices() store.Store {
	return r.store
}

// Config returns the effective configuration.
func (r *Relay) Config() Config {
	return r.config
}

// Close releases the registry.
func (r *Relay) Close() error {
	return r.store.Close()
}

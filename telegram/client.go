// Package telegram relays text notifications through the Telegram Bot API.
//
// A Client issues exactly one sendMessage call per Send. It never retries and
// it does not call getMe first, so every relay is a single outbound POST.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender relays a message to a chat using the given bot credentials.
type Sender interface {
	Send(ctx context.Context, botToken, chatID, text string) error
}

// compile-time interface check.
var _ Sender = (*Client)(nil)

// SendError is returned when Telegram could not be reached or rejected the
// message.
type SendError struct {
	// Code is the Telegram error code, or zero for transport failures.
	Code int

	Err error
}

func (e *SendError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *SendError) Unwrap() error { return e.Err }

// Client sends messages with per-call bot tokens.
type Client struct {
	endpoint string
	client   *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEndpoint sets the Bot API URL format. It takes the bot token and the
// method name as its two %s verbs.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithTimeout bounds every outbound call. Zero means no client-side timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewClient creates a Client that talks to the public Bot API by default.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts text to chatID with HTML parse mode.
func (c *Client) Send(ctx context.Context, botToken, chatID, text string) error {
	bot := &tgbotapi.BotAPI{
		Token:  botToken,
		Client: &contextClient{ctx: ctx, client: c.client},
	}
	bot.SetAPIEndpoint(c.endpoint)

	msg := newMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := bot.Send(msg); err != nil {
		return wrapError(err, botToken)
	}
	return nil
}

// newMessage addresses numeric chat IDs directly and anything else as a
// channel username.
func newMessage(chatID, text string) tgbotapi.MessageConfig {
	if n, err := strconv.ParseInt(chatID, 10, 64); err == nil && n != 0 {
		return tgbotapi.NewMessage(n, text)
	}
	return tgbotapi.NewMessageToChannel(chatID, text)
}

// wrapError strips the request URL from transport failures, since it carries
// the bot token in its path.
func wrapError(err error, botToken string) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &SendError{Code: apiErr.Code, Err: fmt.Errorf("telegram: %s", redact(apiErr.Message, botToken))}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if botToken != "" && strings.Contains(err.Error(), botToken) {
		return &SendError{Err: fmt.Errorf("telegram: sendMessage: %s", redact(err.Error(), botToken))}
	}
	return &SendError{Err: fmt.Errorf("telegram: sendMessage: %w", err)}
}

func redact(s, botToken string) string {
	if botToken == "" {
		return s
	}
	return strings.ReplaceAll(s, botToken, "<redacted>")
}

// contextClient binds the caller's context to requests built by tgbotapi,
// which creates them without one.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c *contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx)) //nolint:gosec // G704: endpoint is operator-configured.
}

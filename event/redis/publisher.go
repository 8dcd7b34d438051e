// Package redis publishes smsrelay events on Redis pub/sub channels.
//
// Each event is marshalled as JSON and published on "{prefix}.{type}",
// e.g. "smsrelay.sms.relayed".
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/smsrelay/event"
)

// DefaultPrefix is the channel prefix used when none is configured.
const DefaultPrefix = "smsrelay"

// compile-time interface check.
var _ event.Publisher = (*Publisher)(nil)

// Publisher implements event.Publisher on top of a Redis client.
type Publisher struct {
	client *goredis.Client
	prefix string
}

// New creates a Publisher. An empty prefix means DefaultPrefix.
func New(client *goredis.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{client: client, prefix: prefix}
}

// Open parses a redis:// URL and creates a Publisher that owns its client.
func Open(url, prefix string) (*Publisher, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return New(goredis.NewClient(opts), prefix), nil
}

// Channel returns the channel name events of type t are published on.
func (p *Publisher) Channel(t event.Type) string {
	return p.prefix + "." + string(t)
}

// Publish marshals evt and publishes it.
func (p *Publisher) Publish(ctx context.Context, evt *event.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(evt.Type), data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", evt.Type, err)
	}
	return nil
}

// Ping checks connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

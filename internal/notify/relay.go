package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RelayChannel is the Redis channel toasts travel on, before the prefix.
const RelayChannel = "backoffice:toasts"

// Relay fans toasts out through Redis pub/sub so every dashboard process
// sharing a session also shares its notifications. It is a Sink on the
// publishing side; Subscribe feeds the local websocket hub.
type Relay struct {
	client  *redis.Client
	channel string
}

func NewRelay(client *redis.Client, prefix string) *Relay {
	return &Relay{client: client, channel: prefix + RelayChannel}
}

func (r *Relay) Channel() string {
	return r.channel
}

func (r *Relay) Send(ctx context.Context, t Toast) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("notify.Relay.Send: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("notify.Relay.Send: %w", err)
	}
	return nil
}

// Subscribe delivers relayed toasts until ctx is done. Undecodable payloads
// are skipped.
func (r *Relay) Subscribe(ctx context.Context) (<-chan Toast, func(), error) {
	sub := r.client.Subscribe(ctx, r.channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("notify.Relay.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan Toast, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				var t Toast
				if err := json.Unmarshal([]byte(msg.Payload), &t); err != nil {
					log.Debug().Err(err).Str("channel", r.channel).Msg("dropping malformed toast")
					continue
				}
				select {
				case out <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

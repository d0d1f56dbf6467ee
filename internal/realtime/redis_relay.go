package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/charlesng35/mentorlink/pkg/logger"
)

// DefaultRelayChannel is the Redis channel instances exchange events on.
const DefaultRelayChannel = "mentorlink:realtime"

// PubSub is the transport a RedisRelay publishes to and consumes from.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a stream of payloads and a function that ends the subscription.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error)
}

type redisPubSub struct {
	client redis.UniversalClient
}

// NewRedisPubSub adapts a go-redis client to PubSub.
func NewRedisPubSub(client redis.UniversalClient) PubSub {
	return &redisPubSub{client: client}
}

func (p *redisPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

func (p *redisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error) {
	sub := p.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close, nil
}

type relayEnvelope struct {
	Origin   string   `json:"origin"`
	UserID   string   `json:"user_id"`
	Envelope Envelope `json:"envelope"`
}

// RedisRelay fans events out to the other instances sharing a channel. Each instance ignores its
// own publications.
type RedisRelay struct {
	pubsub  PubSub
	channel string
	origin  string
	log     *zap.Logger
}

// NewRedisRelay constructs a relay on channel, or DefaultRelayChannel when empty.
func NewRedisRelay(pubsub PubSub, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		pubsub:  pubsub,
		channel: channel,
		origin:  uuid.NewString(),
		log:     logger.WithModule("realtime"),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, userID string, env Envelope) error {
	payload, err := json.Marshal(relayEnvelope{Origin: r.origin, UserID: userID, Envelope: env})
	if err != nil {
		return fmt.Errorf("realtime relay: encode: %w", err)
	}
	if err := r.pubsub.Publish(ctx, r.channel, payload); err != nil {
		return fmt.Errorf("realtime relay: publish: %w", err)
	}
	return nil
}

// Run delivers events published by other instances until ctx is done.
func (r *RedisRelay) Run(ctx context.Context, deliver func(userID string, env Envelope) bool) error {
	messages, unsubscribe, err := r.pubsub.Subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("realtime relay: %w", err)
	}
	defer func() { _ = unsubscribe() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("realtime relay: subscription closed")
			}
			var msg relayEnvelope
			if err := json.Unmarshal(payload, &msg); err != nil {
				r.log.Warn("discarding malformed relay payload", zap.Error(err))
				continue
			}
			if msg.Origin == r.origin || msg.UserID == "" {
				continue
			}
			deliver(msg.UserID, msg.Envelope)
		}
	}
}

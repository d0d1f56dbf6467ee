package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memoryPubSub fans payloads out to every subscriber of a channel.
type memoryPubSub struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newMemoryPubSub() *memoryPubSub {
	return &memoryPubSub{subs: make(map[string][]chan []byte)}
}

func (p *memoryPubSub) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs[channel] {
		ch <- payload
	}
	return nil
}

func (p *memoryPubSub) Subscribe(_ context.Context, channel string) (<-chan []byte, func() error, error) {
	ch := make(chan []byte, 16)
	p.mu.Lock()
	p.subs[channel] = append(p.subs[channel], ch)
	p.mu.Unlock()
	return ch, func() error { return nil }, nil
}

func (p *memoryPubSub) subscribers(channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs[channel])
}

type delivery struct {
	userID string
	env    Envelope
}

func TestRedisRelayDeliversToOtherInstances(t *testing.T) {
	pubsub := newMemoryPubSub()
	local := NewRedisRelay(pubsub, "")
	remote := NewRedisRelay(pubsub, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localGot := make(chan delivery, 4)
	remoteGot := make(chan delivery, 4)
	go func() {
		_ = local.Run(ctx, func(userID string, env Envelope) bool { localGot <- delivery{userID, env}; return true })
	}()
	go func() {
		_ = remote.Run(ctx, func(userID string, env Envelope) bool { remoteGot <- delivery{userID, env}; return true })
	}()
	require.Eventually(t, func() bool { return pubsub.subscribers(DefaultRelayChannel) == 2 }, time.Second, 5*time.Millisecond)

	env, err := NewEnvelope(EventNotification, map[string]string{"id": "n1"})
	require.NoError(t, err)
	require.NoError(t, local.Publish(ctx, "user-1", env))

	select {
	case got := <-remoteGot:
		require.Equal(t, "user-1", got.userID)
		require.Equal(t, EventNotification, got.env.Event)
		require.JSONEq(t, `{"id":"n1"}`, string(got.env.Data))
	case <-time.After(time.Second):
		t.Fatal("remote instance did not receive relayed event")
	}

	select {
	case got := <-localGot:
		t.Fatalf("publishing instance re-delivered its own event: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedisRelaySkipsMalformedPayloads(t *testing.T) {
	pubsub := newMemoryPubSub()
	relay := NewRedisRelay(pubsub, "custom")

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan delivery, 1)
	done := make(chan error, 1)
	go func() {
		done <- relay.Run(ctx, func(userID string, env Envelope) bool { got <- delivery{userID, env}; return true })
	}()
	require.Eventually(t, func() bool { return pubsub.subscribers("custom") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, pubsub.Publish(ctx, "custom", []byte("not json")))
	require.NoError(t, pubsub.Publish(ctx, "custom", []byte(`{"origin":"other","user_id":"u9","envelope":{"event":"newMessage"}}`)))

	select {
	case d := <-got:
		require.Equal(t, "u9", d.userID)
	case <-time.After(time.Second):
		t.Fatal("valid payload was not delivered")
	}

	cancel()
	require.NoError(t, <-done)
}

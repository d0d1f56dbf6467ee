package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubConn struct {
	userID string
	sent   []Envelope
	closed bool
}

func (c *stubConn) UserID() string          { return c.userID }
func (c *stubConn) Send(env Envelope) error { c.sent = append(c.sent, env); return nil }
func (c *stubConn) Close() error            { c.closed = true; return nil }
func (c *stubConn) LastSeen() time.Time     { return time.Now() }

func TestMemoryRegistryLastWriteWins(t *testing.T) {
	registry := NewMemoryRegistry()
	first := &stubConn{userID: "u1"}
	second := &stubConn{userID: "u1"}

	require.Nil(t, registry.Register(first))
	replaced := registry.Register(second)
	require.Same(t, first, replaced)
	require.False(t, first.closed, "replaced handle stays open")
	require.Same(t, second, registry.Lookup("u1"))
	require.Equal(t, 1, registry.Count())
}

func TestMemoryRegistryStaleUnregisterKeepsNewer(t *testing.T) {
	registry := NewMemoryRegistry()
	stale := &stubConn{userID: "u1"}
	fresh := &stubConn{userID: "u1"}

	registry.Register(stale)
	registry.Register(fresh)

	require.False(t, registry.Unregister(stale))
	require.Same(t, fresh, registry.Lookup("u1"))

	require.True(t, registry.Unregister(fresh))
	require.Nil(t, registry.Lookup("u1"))
	require.Zero(t, registry.Count())
}

func TestMemoryRegistryIgnoresAnonymousAndDuplicateRegistration(t *testing.T) {
	registry := NewMemoryRegistry()
	require.Nil(t, registry.Register(&stubConn{}))
	require.Zero(t, registry.Count())

	conn := &stubConn{userID: "u2"}
	registry.Register(conn)
	require.Nil(t, registry.Register(conn))
	require.Equal(t, 1, registry.Count())
}

func TestParticipantSetDeduplicates(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, participantSet("a", "b", "a", ""))
	require.Equal(t, []string{"a"}, participantSet("a", "a"))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventNotification, map[string]string{"id": "n1"})
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, env.Decode(&decoded))
	require.Equal(t, "n1", decoded["id"])

	empty, err := NewEnvelope(EventPong, nil)
	require.NoError(t, err)
	require.Error(t, empty.Decode(&decoded))
}

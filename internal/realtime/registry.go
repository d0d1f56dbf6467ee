package realtime

import (
	"sync"
	"time"
)

// Conn is a live realtime connection owned by one authenticated user.
type Conn interface {
	UserID() string
	// Send enqueues a frame without blocking.
	Send(env Envelope) error
	Close() error
	LastSeen() time.Time
}

// ConnectionRegistry maps a user to the connection that receives their events.
type ConnectionRegistry interface {
	// Register maps conn to its user, returning the connection it replaced, if any.
	Register(conn Conn) Conn
	// Unregister removes the mapping only while it still points at conn.
	Unregister(conn Conn) bool
	Lookup(userID string) Conn
	Count() int
}

// MemoryRegistry is an in-process ConnectionRegistry. The most recent registration for a user wins;
// the replaced connection stays open but no longer receives events addressed to the user.
type MemoryRegistry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewMemoryRegistry constructs an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{conns: make(map[string]Conn)}
}

func (r *MemoryRegistry) Register(conn Conn) Conn {
	if conn == nil || conn.UserID() == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.conns[conn.UserID()]
	r.conns[conn.UserID()] = conn
	if previous == conn {
		return nil
	}
	return previous
}

func (r *MemoryRegistry) Unregister(conn Conn) bool {
	if conn == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[conn.UserID()]
	if !ok || current != conn {
		return false
	}
	delete(r.conns, conn.UserID())
	return true
}

func (r *MemoryRegistry) Lookup(userID string) Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[userID]
}

func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

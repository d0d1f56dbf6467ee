package chatclient

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotStarted is returned by operations that need a running session.
	ErrNotStarted = errors.New("chatclient: subscriber not started")
	// ErrNotConnected is returned when the socket is down between reconnect attempts.
	ErrNotConnected = errors.New("chatclient: not connected")
	// ErrConnectionLost resolves sends whose connection dropped before the ack. The message may
	// still have been stored.
	ErrConnectionLost = errors.New("chatclient: connection lost before acknowledgement")
	// ErrAckTimeout is returned when no ack arrives in time. The message may still have been stored.
	ErrAckTimeout = errors.New("chatclient: timed out waiting for acknowledgement")
	// ErrUnauthorized reports a rejected token during the handshake.
	ErrUnauthorized = errors.New("chatclient: unauthorized")
)

// Identity is the authenticated user a session belongs to.
type Identity struct {
	UserID string
	Token  string
}

// User is the public identity of a participant.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Message is a persisted chat message.
type Message struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	RequestID  string    `json:"request_id"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
	Sender     *User     `json:"sender,omitempty"`
}

// Participants identifies both sides of a conversation.
type Participants struct {
	Mentor *User `json:"mentor"`
	Mentee *User `json:"mentee"`
}

// Conversation is one entry of the user's conversation list.
type Conversation struct {
	RequestID   string    `json:"request_id"`
	Participant *User     `json:"participant"`
	UnreadCount int64     `json:"unread_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Notification is an in-app notification.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Link      string         `json:"link,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// SendError carries the server's reason for rejecting a message.
type SendError struct {
	Message string
}

func (e *SendError) Error() string {
	return e.Message
}

// APIError is a non-success REST response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chatclient: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

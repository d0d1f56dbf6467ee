package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	closeWait      = time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MiB

	defaultBufferSize = 64
)

var (
	// ErrConnectionClosed is returned when sending to a connection that has shut down.
	ErrConnectionClosed = errors.New("realtime: connection closed")
	// ErrBackpressure is returned when a connection's send buffer is full. The connection is closed.
	ErrBackpressure = errors.New("realtime: send buffer full")
)

type connection struct {
	id      string
	userID  string
	gateway *Gateway
	socket  *websocket.Conn

	// send is never closed; done signals shutdown to both loops.
	send      chan Envelope
	done      chan struct{}
	closeOnce sync.Once
	lastSeen  atomic.Int64
}

func newConnection(gateway *Gateway, socket *websocket.Conn, userID string, buffer int) *connection {
	if buffer <= 0 {
		buffer = defaultBufferSize
	}
	c := &connection{
		id:      uuid.NewString(),
		userID:  userID,
		gateway: gateway,
		socket:  socket,
		send:    make(chan Envelope, buffer),
		done:    make(chan struct{}),
	}
	c.touch()
	return c
}

func (c *connection) UserID() string { return c.userID }

func (c *connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *connection) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *connection) Send(env Envelope) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- env:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		c.gateway.log.Warn("dropping backpressured connection",
			zap.String("user_id", c.userID),
			zap.String("connection_id", c.id),
			zap.String("event", env.Event),
		)
		_ = c.Close()
		return ErrBackpressure
	}
}

func (c *connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWait))
		err = c.socket.Close()
	})
	return err
}

func (c *connection) readLoop(ctx context.Context) {
	defer c.Close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.touch()
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.gateway.log.Debug("unexpected close", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		c.touch()
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))

		if len(payload) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			_ = c.Send(Envelope{Event: EventError, Error: "Malformed frame"})
			continue
		}

		switch env.Event {
		case EventSendMessage:
			c.gateway.handleSendMessage(ctx, c, env)
		case EventPing:
			_ = c.Send(Envelope{Event: EventPong, AckID: env.AckID})
		default:
			_ = c.Send(Envelope{Event: EventError, AckID: env.AckID, Error: "Unsupported event: " + env.Event})
		}
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case env := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/mentorlink/internal/monitoring"
	"github.com/charlesng35/mentorlink/internal/services"
	apperrors "github.com/charlesng35/mentorlink/pkg/errors"
	"github.com/charlesng35/mentorlink/pkg/logger"
	"github.com/charlesng35/mentorlink/pkg/validator"
)

const commandTimeout = 10 * time.Second

// Delivery describes where an emitted event went.
type Delivery string

const (
	DeliveryLocal   Delivery = "local"
	DeliveryRelayed Delivery = "relayed"
	DeliveryDropped Delivery = "dropped"
)

// MessageCreator persists chat messages on behalf of a connection.
type MessageCreator interface {
	CreateMessage(ctx context.Context, input services.CreateMessageInput) (*services.MessageDTO, error)
}

// Relay forwards events for users connected to other instances.
type Relay interface {
	Publish(ctx context.Context, userID string, env Envelope) error
	Run(ctx context.Context, deliver func(userID string, env Envelope) bool) error
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithRelay enables cross-instance fan-out.
func WithRelay(relay Relay) Option {
	return func(g *Gateway) {
		g.relay = relay
	}
}

// WithSendBuffer sets the per-connection outbound buffer size.
func WithSendBuffer(size int) Option {
	return func(g *Gateway) {
		if size > 0 {
			g.sendBuffer = size
		}
	}
}

// WithAllowedOrigins accepts handshakes from the listed origins in addition to same-host and loopback
// origins. "*" accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(g *Gateway) {
		for _, origin := range origins {
			if host := hostWithoutPort(origin); host != "" {
				g.allowedOrigins[strings.ToLower(host)] = struct{}{}
			}
		}
	}
}

// Gateway owns the realtime connections of this instance. It turns inbound sendMessage commands
// into persisted messages and pushes events to connected users.
type Gateway struct {
	registry       ConnectionRegistry
	messages       MessageCreator
	relay          Relay
	upgrader       websocket.Upgrader
	sendBuffer     int
	allowedOrigins map[string]struct{}
	log            *zap.Logger

	live sync.Map // *connection -> struct{}
}

// NewGateway constructs a gateway around the injected registry and message store.
func NewGateway(registry ConnectionRegistry, messages MessageCreator, opts ...Option) *Gateway {
	if registry == nil {
		registry = NewMemoryRegistry()
	}
	g := &Gateway{
		registry:       registry,
		messages:       messages,
		sendBuffer:     defaultBufferSize,
		allowedOrigins: make(map[string]struct{}),
		log:            logger.WithModule("realtime"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originHost := strings.ToLower(hostWithoutPort(origin))
	if originHost == strings.ToLower(hostWithoutPort(r.Host)) || isLoopback(originHost) {
		return true
	}
	if _, ok := g.allowedOrigins["*"]; ok {
		return true
	}
	_, ok := g.allowedOrigins[originHost]
	return ok
}

// Serve upgrades the request for the authenticated user and blocks until the connection closes.
func (g *Gateway) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	socket, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	conn := newConnection(g, socket, userID, g.sendBuffer)
	g.live.Store(conn, struct{}{})
	if replaced := g.registry.Register(conn); replaced != nil {
		g.log.Info("connection replaced", zap.String("user_id", userID), zap.String("connection_id", conn.id))
	}
	monitoring.RecordRealtimeConnection(1)

	defer func() {
		g.registry.Unregister(conn)
		g.live.Delete(conn)
		_ = conn.Close()
		monitoring.RecordRealtimeConnection(-1)
	}()

	go conn.writeLoop()
	conn.readLoop(r.Context())
}

// EmitToUser pushes an event to the user's connection on this instance, or through the relay when the
// user is not connected here. Without a relay the event is dropped for offline users.
func (g *Gateway) EmitToUser(ctx context.Context, userID, event string, payload any) (Delivery, error) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		monitoring.RecordRealtimeFailure(event, "encode", err.Error())
		return DeliveryDropped, err
	}

	if g.DeliverLocal(userID, env) {
		return DeliveryLocal, nil
	}

	if g.relay != nil {
		if err := g.relay.Publish(ctx, userID, env); err != nil {
			monitoring.RecordRealtimeFailure(event, "relay", err.Error())
			return DeliveryDropped, err
		}
		monitoring.RecordRealtimeBroadcast(event, string(DeliveryRelayed))
		return DeliveryRelayed, nil
	}

	monitoring.RecordRealtimeBroadcast(event, string(DeliveryDropped))
	return DeliveryDropped, nil
}

// DeliverLocal enqueues env on the user's local connection, reporting whether it was accepted.
func (g *Gateway) DeliverLocal(userID string, env Envelope) bool {
	conn := g.registry.Lookup(userID)
	if conn == nil {
		return false
	}
	if err := conn.Send(env); err != nil {
		monitoring.RecordRealtimeFailure(env.Event, "backpressure", err.Error())
		return false
	}
	monitoring.RecordRealtimeBroadcast(env.Event, string(DeliveryLocal))
	return true
}

// PushNotification emits a persisted notification to its owner.
func (g *Gateway) PushNotification(ctx context.Context, notification *services.NotificationDTO) (Delivery, error) {
	return g.EmitToUser(ctx, notification.UserID, EventNotification, notification)
}

// StartRelay consumes relayed events until ctx is cancelled. It is a no-op without a relay.
func (g *Gateway) StartRelay(ctx context.Context) {
	if g.relay == nil {
		return
	}
	go func() {
		if err := g.relay.Run(ctx, g.DeliverLocal); err != nil && ctx.Err() == nil {
			g.log.Error("relay stopped", zap.Error(err))
		}
	}()
}

// ConnectionCount returns the number of users with a registered connection.
func (g *Gateway) ConnectionCount() int {
	return g.registry.Count()
}

// SweepIdle closes connections that have not shown activity within maxIdle, including replaced
// connections that are no longer registered.
func (g *Gateway) SweepIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-maxIdle)
	closed := 0
	g.live.Range(func(key, _ any) bool {
		conn := key.(*connection)
		if conn.LastSeen().Before(cutoff) {
			_ = conn.Close()
			closed++
		}
		return true
	})
	return closed
}

// Shutdown closes every open connection.
func (g *Gateway) Shutdown() {
	if g == nil {
		return
	}
	g.live.Range(func(key, _ any) bool {
		_ = key.(*connection).Close()
		return true
	})
}

func (g *Gateway) handleSendMessage(ctx context.Context, conn Conn, env Envelope) {
	ack := Envelope{Event: EventAck, AckID: env.AckID}
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("sendMessage panicked", zap.String("user_id", conn.UserID()), zap.Any("panic", r))
			monitoring.RecordMessageSent("error")
			ack.Data = nil
			ack.Error = apperrors.ErrInternalServer.Message
		}
		if err := conn.Send(ack); err != nil {
			g.log.Debug("ack not delivered", zap.String("user_id", conn.UserID()), zap.Error(err))
		}
	}()

	var payload SendMessagePayload
	if err := env.Decode(&payload); err != nil {
		monitoring.RecordMessageSent("rejected")
		ack.Error = "Invalid message payload"
		return
	}
	if err := validator.ValidateStruct(payload); err != nil {
		monitoring.RecordMessageSent("rejected")
		ack.Error = "Missing data for creating a message"
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	message, err := g.messages.CreateMessage(cmdCtx, services.CreateMessageInput{
		Content:    payload.Content,
		SenderID:   conn.UserID(),
		ReceiverID: payload.ReceiverID,
		RequestID:  payload.RequestID,
	})
	if err != nil {
		appErr := apperrors.FromError(err)
		if appErr.IsInternal() {
			g.log.Error("create message failed", zap.String("user_id", conn.UserID()), zap.Error(err))
			monitoring.RecordMessageSent("error")
			ack.Error = apperrors.ErrInternalServer.Message
			return
		}
		monitoring.RecordMessageSent("rejected")
		ack.Error = appErr.Message
		return
	}
	monitoring.RecordMessageSent("success")

	for _, userID := range participantSet(message.SenderID, message.ReceiverID) {
		if _, err := g.EmitToUser(cmdCtx, userID, EventNewMessage, message); err != nil {
			g.log.Warn("newMessage not delivered", zap.String("user_id", userID), zap.Error(err))
		}
	}

	data, err := json.Marshal(message)
	if err != nil {
		ack.Error = apperrors.ErrInternalServer.Message
		return
	}
	ack.Data = data
}

func participantSet(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	set := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, id)
	}
	return set
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

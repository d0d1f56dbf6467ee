// Package chatclient is a Go client for the realtime chat gateway. A Subscriber keeps one
// authenticated socket per session, caches conversations and notifications, and reconciles
// pushed events with REST state.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/mentorlink/pkg/logger"
)

const (
	eventSendMessage  = "sendMessage"
	eventAck          = "ack"
	eventNewMessage   = "newMessage"
	eventNotification = "notification"
	eventError        = "error"

	defaultSendTimeout = 10 * time.Second
	defaultMinBackoff  = 500 * time.Millisecond
	defaultMaxBackoff  = 30 * time.Second
	defaultReadTimeout = 2 * time.Minute
	writeWait          = 10 * time.Second
)

type frame struct {
	Event string          `json:"event"`
	AckID string          `json:"ack_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

type sendPayload struct {
	Content    string `json:"content"`
	ReceiverID string `json:"receiver_id"`
	RequestID  string `json:"request_id"`
}

// Options configure a Subscriber. Only BaseURL is required.
type Options struct {
	// BaseURL is the http(s) origin of the API, e.g. http://localhost:8000.
	BaseURL    string
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     *zap.Logger

	SendTimeout time.Duration
	ReadTimeout time.Duration
	MinBackoff  time.Duration
	MaxBackoff  time.Duration

	// OnMessage and OnNotification observe pushed events after the caches are updated. They run
	// in arrival order on a goroutine separate from the connection, so they may call Stop or Start.
	OnMessage      func(Message)
	OnNotification func(Notification)
}

// Subscriber is the client side of the realtime channel.
type Subscriber struct {
	baseURL     string
	wsURL       string
	httpClient  *http.Client
	dialer      *websocket.Dialer
	log         *zap.Logger
	sendTimeout time.Duration
	readTimeout time.Duration
	minBackoff  time.Duration
	maxBackoff  time.Duration

	onMessage      func(Message)
	onNotification func(Notification)

	lifecycle sync.Mutex

	mu                 sync.Mutex
	session            *session
	messages           map[string][]Message
	conversations      []Conversation
	conversationsValid bool
	notifications      []Notification
	openRequest        string
	markInFlight       bool
}

// New validates opts and returns an idle Subscriber.
func New(opts Options) (*Subscriber, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("chatclient: parse base url: %w", err)
	}
	ws := *base
	switch base.Scheme {
	case "http":
		ws.Scheme = "ws"
	case "https":
		ws.Scheme = "wss"
	default:
		return nil, fmt.Errorf("chatclient: base url must be http or https, got %q", opts.BaseURL)
	}
	ws.Path = strings.TrimRight(base.Path, "/") + "/ws"
	ws.RawQuery = ""

	s := &Subscriber{
		baseURL:        base.String(),
		wsURL:          ws.String(),
		httpClient:     opts.HTTPClient,
		dialer:         opts.Dialer,
		log:            opts.Logger,
		sendTimeout:    positive(opts.SendTimeout, defaultSendTimeout),
		readTimeout:    positive(opts.ReadTimeout, defaultReadTimeout),
		minBackoff:     positive(opts.MinBackoff, defaultMinBackoff),
		maxBackoff:     positive(opts.MaxBackoff, defaultMaxBackoff),
		onMessage:      opts.OnMessage,
		onNotification: opts.OnNotification,
		messages:       make(map[string][]Message),
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if s.dialer == nil {
		s.dialer = websocket.DefaultDialer
	}
	if s.log == nil {
		s.log = logger.WithModule("chatclient")
	}
	if s.maxBackoff < s.minBackoff {
		s.maxBackoff = s.minBackoff
	}
	return s, nil
}

// Start opens the realtime connection for id. Starting again with the same identity is a no-op;
// a different identity tears the previous session down and clears every cache first.
func (s *Subscriber) Start(ctx context.Context, id Identity) error {
	if strings.TrimSpace(id.UserID) == "" || strings.TrimSpace(id.Token) == "" {
		return errors.New("chatclient: identity requires user id and token")
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	current := s.session
	s.mu.Unlock()
	if current != nil {
		if current.identity == id && !current.ended() {
			return nil
		}
		s.teardown(current)
	}

	conn, err := s.dial(ctx, id)
	if err != nil {
		return err
	}

	sess := newSession(id)
	sess.setConn(conn)
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	go s.run(sess, conn)
	go sess.runHooks()
	return nil
}

// Stop closes the connection and forgets the session. Safe to call when not started.
func (s *Subscriber) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	current := s.session
	s.mu.Unlock()
	if current != nil {
		s.teardown(current)
	}
}

func (s *Subscriber) teardown(sess *session) {
	sess.close()
	s.mu.Lock()
	if s.session == sess {
		s.session = nil
	}
	s.messages = make(map[string][]Message)
	s.conversations = nil
	s.conversationsValid = false
	s.notifications = nil
	s.openRequest = ""
	s.markInFlight = false
	s.mu.Unlock()
}

// Connected reports whether the socket is currently up.
func (s *Subscriber) Connected() bool {
	sess := s.current()
	return sess != nil && sess.conn() != nil
}

func (s *Subscriber) current() *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Subscriber) isCurrent(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session == sess
}

// Send emits a message and waits for the server's acknowledgement. A rejected send returns a
// *SendError with the server's reason; a timeout returns ErrAckTimeout. The stored message is
// merged into the conversation cache before it is returned.
func (s *Subscriber) Send(ctx context.Context, content, receiverID, requestID string) (*Message, error) {
	sess := s.current()
	if sess == nil {
		return nil, ErrNotStarted
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sendTimeout)
		defer cancel()
	}

	data, err := json.Marshal(sendPayload{Content: content, ReceiverID: receiverID, RequestID: requestID})
	if err != nil {
		return nil, fmt.Errorf("chatclient: encode message: %w", err)
	}

	ackID := uuid.NewString()
	replies := sess.expect(ackID)
	defer sess.forget(ackID)

	if err := sess.write(frame{Event: eventSendMessage, AckID: ackID, Data: data}); err != nil {
		return nil, err
	}

	select {
	case reply := <-replies:
		if reply.err != nil {
			return nil, reply.err
		}
		if reply.frame.Error != "" {
			return nil, &SendError{Message: reply.frame.Error}
		}
		var msg Message
		if err := json.Unmarshal(reply.frame.Data, &msg); err != nil {
			return nil, fmt.Errorf("chatclient: decode ack: %w", err)
		}
		s.applyMessage(sess, msg)
		return &msg, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrAckTimeout, ctx.Err())
	}
}

// OpenConversation loads the history of requestID, marks it as the open conversation and
// clears its unread messages on the server when there are any.
func (s *Subscriber) OpenConversation(ctx context.Context, requestID string) ([]Message, error) {
	sess := s.current()
	if sess == nil {
		return nil, ErrNotStarted
	}
	h, err := s.fetchHistory(ctx, sess.identity.Token, requestID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.session != sess {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	s.messages[requestID] = mergeMessages(s.messages[requestID], h.Messages...)
	s.openRequest = requestID
	out := append([]Message(nil), s.messages[requestID]...)
	s.scheduleMarkReadLocked(sess)
	s.mu.Unlock()
	return out, nil
}

// CloseConversation leaves the open conversation. Later messages only update the caches.
func (s *Subscriber) CloseConversation() {
	s.mu.Lock()
	s.openRequest = ""
	s.mu.Unlock()
}

// Messages returns the cached messages of requestID in display order.
func (s *Subscriber) Messages(requestID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages[requestID]...)
}

// Conversations returns the conversation list, refetching it when a pushed message or a
// mark-read has invalidated the cached copy.
func (s *Subscriber) Conversations(ctx context.Context) ([]Conversation, error) {
	sess := s.current()
	if sess == nil {
		return nil, ErrNotStarted
	}
	s.mu.Lock()
	if s.conversationsValid {
		out := append([]Conversation(nil), s.conversations...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	items, err := s.fetchConversations(ctx, sess.identity.Token)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.session == sess {
		s.conversations = items
		s.conversationsValid = true
	}
	s.mu.Unlock()
	return append([]Conversation(nil), items...), nil
}

// LoadNotifications replaces the notification cache with the server's list.
func (s *Subscriber) LoadNotifications(ctx context.Context) ([]Notification, error) {
	sess := s.current()
	if sess == nil {
		return nil, ErrNotStarted
	}
	items, err := s.fetchNotifications(ctx, sess.identity.Token)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.session == sess {
		s.notifications = items
	}
	s.mu.Unlock()
	return append([]Notification(nil), items...), nil
}

// Notifications returns the cached notifications, newest first.
func (s *Subscriber) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.notifications...)
}

// MarkNotificationRead marks one notification read on the server and in the cache.
func (s *Subscriber) MarkNotificationRead(ctx context.Context, id string) (Notification, error) {
	sess := s.current()
	if sess == nil {
		return Notification{}, ErrNotStarted
	}
	updated, err := s.patchNotificationRead(ctx, sess.identity.Token, id)
	if err != nil {
		return Notification{}, err
	}
	s.mu.Lock()
	for i := range s.notifications {
		if s.notifications[i].ID == updated.ID {
			s.notifications[i] = updated
		}
	}
	s.mu.Unlock()
	return updated, nil
}

func (s *Subscriber) run(sess *session, conn *websocket.Conn) {
	defer close(sess.done)

	resumed := false
	for {
		if resumed {
			sess.setConn(conn)
		}
		if sess.ctx.Err() != nil {
			sess.setConn(nil)
			_ = conn.Close()
			return
		}
		if resumed {
			go s.resync(sess)
		}

		err := s.readLoop(sess, conn)
		sess.setConn(nil)
		_ = conn.Close()
		sess.failPending(ErrConnectionLost)
		if sess.ctx.Err() != nil {
			return
		}
		s.log.Warn("realtime connection lost", zap.String("user_id", sess.identity.UserID), zap.Error(err))

		conn = s.reconnect(sess)
		if conn == nil {
			return
		}
		resumed = true
	}
}

func (s *Subscriber) reconnect(sess *session) *websocket.Conn {
	delay := s.minBackoff
	for attempt := 1; ; attempt++ {
		timer := time.NewTimer(jitter(delay))
		select {
		case <-sess.ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := s.dial(sess.ctx, sess.identity)
		if err == nil {
			s.log.Info("realtime connection restored", zap.String("user_id", sess.identity.UserID), zap.Int("attempt", attempt))
			return conn
		}
		if errors.Is(err, ErrUnauthorized) {
			s.log.Warn("realtime token rejected, giving up", zap.String("user_id", sess.identity.UserID))
			return nil
		}
		if sess.ctx.Err() != nil {
			return nil
		}
		s.log.Debug("realtime reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
		delay = min(delay*2, s.maxBackoff)
	}
}

// resync refetches what may have been missed while disconnected.
func (s *Subscriber) resync(sess *session) {
	s.mu.Lock()
	requestID := s.openRequest
	s.conversationsValid = false
	s.mu.Unlock()
	if requestID == "" {
		return
	}

	h, err := s.fetchHistory(sess.ctx, sess.identity.Token, requestID)
	if err != nil {
		s.log.Debug("refetch open conversation failed", zap.String("request_id", requestID), zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != sess {
		return
	}
	s.messages[requestID] = mergeMessages(s.messages[requestID], h.Messages...)
	s.scheduleMarkReadLocked(sess)
}

func (s *Subscriber) readLoop(sess *session, conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		switch f.Event {
		case eventAck:
			sess.resolve(f)
		case eventNewMessage:
			var msg Message
			if err := json.Unmarshal(f.Data, &msg); err != nil {
				s.log.Debug("malformed newMessage", zap.Error(err))
				continue
			}
			s.applyMessage(sess, msg)
		case eventNotification:
			var n Notification
			if err := json.Unmarshal(f.Data, &n); err != nil {
				s.log.Debug("malformed notification", zap.Error(err))
				continue
			}
			s.applyNotification(sess, n)
		case eventError:
			s.log.Warn("realtime error event", zap.String("error", f.Error))
		}
	}
}

func (s *Subscriber) applyMessage(sess *session, msg Message) {
	s.mu.Lock()
	if s.session != sess {
		s.mu.Unlock()
		return
	}
	s.messages[msg.RequestID] = mergeMessages(s.messages[msg.RequestID], msg)
	s.conversationsValid = false
	if msg.RequestID == s.openRequest {
		s.scheduleMarkReadLocked(sess)
	}
	s.mu.Unlock()

	if s.onMessage != nil {
		sess.enqueueHook(func() { s.onMessage(msg) })
	}
}

func (s *Subscriber) applyNotification(sess *session, n Notification) {
	s.mu.Lock()
	if s.session != sess {
		s.mu.Unlock()
		return
	}
	var added bool
	s.notifications, added = prependNotification(s.notifications, n)
	s.mu.Unlock()

	if added && s.onNotification != nil {
		sess.enqueueHook(func() { s.onNotification(n) })
	}
}

// scheduleMarkReadLocked issues one mark-read when the open conversation has unread messages
// for the current user and no call is already in flight. Callers hold s.mu.
func (s *Subscriber) scheduleMarkReadLocked(sess *session) {
	requestID := s.openRequest
	if requestID == "" || s.markInFlight {
		return
	}
	ids := unreadFor(s.messages[requestID], sess.identity.UserID)
	if len(ids) == 0 {
		return
	}
	s.markInFlight = true
	go s.markRead(sess, requestID, ids)
}

func (s *Subscriber) markRead(sess *session, requestID string, ids []string) {
	ctx, cancel := context.WithTimeout(sess.ctx, s.sendTimeout)
	defer cancel()
	err := s.putMarkRead(ctx, sess.identity.Token, requestID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != sess {
		return
	}
	s.markInFlight = false
	if err != nil {
		s.log.Warn("mark conversation read failed", zap.String("request_id", requestID), zap.Error(err))
		return
	}

	covered := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		covered[id] = struct{}{}
	}
	cached := s.messages[requestID]
	for i := range cached {
		if _, ok := covered[cached[i].ID]; ok {
			cached[i].IsRead = true
		}
	}
	s.conversationsValid = false
	// Messages that arrived while the call was in flight start a new transition.
	s.scheduleMarkReadLocked(sess)
}

func (s *Subscriber) dial(ctx context.Context, id Identity) (*websocket.Conn, error) {
	target := s.wsURL + "?token=" + url.QueryEscape(id.Token)
	conn, resp, err := s.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("chatclient: dial realtime: %w", err)
	}
	return conn, nil
}

type ackResult struct {
	frame frame
	err   error
}

type session struct {
	identity Identity
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu sync.Mutex
	connMu  sync.Mutex
	socket  *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]chan ackResult

	// hooks run in order on their own goroutine so they may call Stop or Start.
	hookMu     sync.Mutex
	hookQueue  []func()
	hookSignal chan struct{}
}

func newSession(id Identity) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		identity: id,
		ctx:      ctx,
		cancel:   cancel,
		done:       make(chan struct{}),
		pending:    make(map[string]chan ackResult),
		hookSignal: make(chan struct{}, 1),
	}
}

func (sess *session) enqueueHook(fn func()) {
	sess.hookMu.Lock()
	sess.hookQueue = append(sess.hookQueue, fn)
	sess.hookMu.Unlock()
	select {
	case sess.hookSignal <- struct{}{}:
	default:
	}
}

// runHooks drains queued hooks until the session ends. Hooks still queued at that point are dropped.
func (sess *session) runHooks() {
	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-sess.hookSignal:
		}
		for {
			sess.hookMu.Lock()
			if len(sess.hookQueue) == 0 {
				sess.hookMu.Unlock()
				break
			}
			fn := sess.hookQueue[0]
			sess.hookQueue = sess.hookQueue[1:]
			sess.hookMu.Unlock()
			if sess.ctx.Err() != nil {
				return
			}
			fn()
		}
	}
}

func (sess *session) ended() bool {
	select {
	case <-sess.done:
		return true
	default:
		return false
	}
}

func (sess *session) conn() *websocket.Conn {
	sess.connMu.Lock()
	defer sess.connMu.Unlock()
	return sess.socket
}

func (sess *session) setConn(conn *websocket.Conn) {
	sess.connMu.Lock()
	sess.socket = conn
	sess.connMu.Unlock()
}

func (sess *session) close() {
	sess.cancel()
	if conn := sess.conn(); conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	<-sess.done
	sess.failPending(ErrConnectionLost)
}

func (sess *session) write(f frame) error {
	conn := sess.conn()
	if conn == nil {
		return ErrNotConnected
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(f); err != nil {
		return fmt.Errorf("chatclient: write %s: %w", f.Event, err)
	}
	return nil
}

func (sess *session) expect(ackID string) <-chan ackResult {
	ch := make(chan ackResult, 1)
	sess.pendingMu.Lock()
	sess.pending[ackID] = ch
	sess.pendingMu.Unlock()
	return ch
}

func (sess *session) forget(ackID string) {
	sess.pendingMu.Lock()
	delete(sess.pending, ackID)
	sess.pendingMu.Unlock()
}

func (sess *session) resolve(f frame) {
	sess.pendingMu.Lock()
	ch, ok := sess.pending[f.AckID]
	delete(sess.pending, f.AckID)
	sess.pendingMu.Unlock()
	if ok {
		ch <- ackResult{frame: f}
	}
}

func (sess *session) failPending(err error) {
	sess.pendingMu.Lock()
	pending := sess.pending
	sess.pending = make(map[string]chan ackResult)
	sess.pendingMu.Unlock()
	for _, ch := range pending {
		ch <- ackResult{err: err}
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	return d/2 + rand.N(d/2)
}

func positive(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

package notifications

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/mentorlink/internal/auditctx"
	"github.com/charlesng35/mentorlink/internal/monitoring"
	"github.com/charlesng35/mentorlink/internal/realtime"
	"github.com/charlesng35/mentorlink/internal/services"
	"github.com/charlesng35/mentorlink/pkg/logger"
)

// DefaultPushTimeout bounds how long a realtime push may take after the notification is stored.
const DefaultPushTimeout = 5 * time.Second

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, input services.CreateNotificationInput) (*services.NotificationDTO, error)
}

// Pusher delivers a stored notification to its owner in realtime.
type Pusher interface {
	PushNotification(ctx context.Context, notification *services.NotificationDTO) (realtime.Delivery, error)
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithPushTimeout overrides DefaultPushTimeout.
func WithPushTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger replaces the module logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// Dispatcher stores a notification and then makes a best-effort realtime push. Only storage failures
// reach the caller.
type Dispatcher struct {
	store   Store
	pusher  Pusher
	timeout time.Duration
	log     *zap.Logger
}

// NewDispatcher constructs a Dispatcher. pusher may be nil, in which case notifications are only stored.
func NewDispatcher(store Store, pusher Pusher, opts ...Option) (*Dispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("notification dispatcher: store is required")
	}
	d := &Dispatcher{
		store:   store,
		pusher:  pusher,
		timeout: DefaultPushTimeout,
		log:     logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch persists the notification and pushes it to the recipient if they are connected.
func (d *Dispatcher) Dispatch(ctx context.Context, input services.CreateNotificationInput) (*services.NotificationDTO, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dto, err := d.store.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	if actor, ok := auditctx.FromContext(ctx); ok && actor.UserID != dto.UserID {
		d.log.Info("notification issued",
			zap.String("notification_id", dto.ID),
			zap.String("user_id", dto.UserID),
			zap.String("kind", dto.Kind),
			zap.String("actor_id", actor.UserID),
			zap.String("actor_role", actor.Role),
			zap.String("actor_ip", actor.IPAddress),
		)
	}

	d.push(ctx, dto)
	return dto, nil
}

func (d *Dispatcher) push(ctx context.Context, dto *services.NotificationDTO) {
	if d.pusher == nil {
		monitoring.RecordNotificationDispatch("offline")
		return
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("notification push panicked",
				zap.String("notification_id", dto.ID),
				zap.String("user_id", dto.UserID),
				zap.Any("panic", r),
			)
			monitoring.RecordNotificationDispatch("error")
		}
	}()

	delivery, err := d.pusher.PushNotification(pushCtx, dto)
	if err != nil {
		d.log.Warn("notification push failed",
			zap.String("notification_id", dto.ID),
			zap.String("user_id", dto.UserID),
			zap.Error(err),
		)
		monitoring.RecordNotificationDispatch("error")
		return
	}
	monitoring.RecordNotificationDispatch(string(delivery))
}

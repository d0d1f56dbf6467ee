package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/mentorlink/internal/auditctx"
	"github.com/charlesng35/mentorlink/internal/database/testutil"
	"github.com/charlesng35/mentorlink/internal/models"
	"github.com/charlesng35/mentorlink/internal/realtime"
	"github.com/charlesng35/mentorlink/internal/services"
)

type pusherFunc func(ctx context.Context, n *services.NotificationDTO) (realtime.Delivery, error)

func (f pusherFunc) PushNotification(ctx context.Context, n *services.NotificationDTO) (realtime.Delivery, error) {
	return f(ctx, n)
}

func newStore(t *testing.T) (*services.NotificationService, *models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := testutil.MustCreateUser(t, db, "Ada Mentee", models.RoleMentee)
	store, err := services.NewNotificationService(db)
	require.NoError(t, err)
	return store, user
}

func TestDispatchPersistsThenPushes(t *testing.T) {
	store, user := newStore(t)

	var pushed *services.NotificationDTO
	dispatcher, err := NewDispatcher(store, pusherFunc(func(ctx context.Context, n *services.NotificationDTO) (realtime.Delivery, error) {
		pushed = n
		_, hasDeadline := ctx.Deadline()
		require.True(t, hasDeadline)
		return realtime.DeliveryLocal, nil
	}))
	require.NoError(t, err)

	dto, err := dispatcher.Dispatch(context.Background(), services.CreateNotificationInput{
		UserID:  user.ID,
		Kind:    services.NotificationKindRoleChanged,
		Message: "Your role is now MENTOR.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, dto.ID)
	require.NotNil(t, pushed)
	require.Equal(t, dto.ID, pushed.ID)

	stored, err := store.ListForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestDispatchSurvivesPushFailures(t *testing.T) {
	cases := map[string]Pusher{
		"error": pusherFunc(func(context.Context, *services.NotificationDTO) (realtime.Delivery, error) {
			return realtime.DeliveryDropped, errors.New("redis down")
		}),
		"panic": pusherFunc(func(context.Context, *services.NotificationDTO) (realtime.Delivery, error) {
			panic("socket gone")
		}),
		"offline": pusherFunc(func(context.Context, *services.NotificationDTO) (realtime.Delivery, error) {
			return realtime.DeliveryDropped, nil
		}),
		"none": nil,
	}

	for name, pusher := range cases {
		t.Run(name, func(t *testing.T) {
			store, user := newStore(t)
			dispatcher, err := NewDispatcher(store, pusher)
			require.NoError(t, err)

			dto, err := dispatcher.Dispatch(context.Background(), services.CreateNotificationInput{UserID: user.ID, Message: "Session booked"})
			require.NoError(t, err)
			require.Equal(t, services.NotificationKindGeneral, dto.Kind)

			count, err := store.CountUnread(context.Background())
			require.NoError(t, err)
			require.Equal(t, int64(1), count)
		})
	}
}

func TestDispatchReturnsStoreErrorsWithoutPushing(t *testing.T) {
	store, _ := newStore(t)
	pushed := false
	dispatcher, err := NewDispatcher(store, pusherFunc(func(context.Context, *services.NotificationDTO) (realtime.Delivery, error) {
		pushed = true
		return realtime.DeliveryLocal, nil
	}))
	require.NoError(t, err)

	_, err = dispatcher.Dispatch(context.Background(), services.CreateNotificationInput{Message: "orphan"})
	require.Error(t, err)
	require.False(t, pushed)
}

func TestDispatchPushOutlivesCallerCancellation(t *testing.T) {
	store, user := newStore(t)

	var pushErr error
	dispatcher, err := NewDispatcher(store, pusherFunc(func(ctx context.Context, n *services.NotificationDTO) (realtime.Delivery, error) {
		pushErr = ctx.Err()
		return realtime.DeliveryLocal, nil
	}), WithPushTimeout(time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	dto, err := dispatcher.Dispatch(ctx, services.CreateNotificationInput{UserID: user.ID, Message: "hello"})
	cancel()
	require.NoError(t, err)
	require.NotNil(t, dto)
	require.NoError(t, pushErr)
}

func TestNewDispatcherRequiresStore(t *testing.T) {
	_, err := NewDispatcher(nil, nil)
	require.Error(t, err)
}

func TestDispatchLogsIssuingActor(t *testing.T) {
	store, user := newStore(t)
	core, logs := observer.New(zap.InfoLevel)

	dispatcher, err := NewDispatcher(store, nil, WithLogger(zap.New(core)))
	require.NoError(t, err)

	input := services.CreateNotificationInput{UserID: user.ID, Message: "Session booked"}
	_, err = dispatcher.Dispatch(context.Background(), input)
	require.NoError(t, err)
	require.Zero(t, logs.FilterMessage("notification issued").Len())

	ctx := auditctx.WithActor(context.Background(), auditctx.Actor{UserID: "admin-1", Role: models.RoleAdmin})
	dto, err := dispatcher.Dispatch(ctx, input)
	require.NoError(t, err)

	entries := logs.FilterMessage("notification issued").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, dto.ID, fields["notification_id"])
	require.Equal(t, "admin-1", fields["actor_id"])
	require.Equal(t, models.RoleAdmin, fields["actor_role"])
}

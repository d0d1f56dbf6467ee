package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mentorlink/internal/database/testutil"
	"github.com/charlesng35/mentorlink/internal/models"
	apperrors "github.com/charlesng35/mentorlink/pkg/errors"
)

func TestNotificationServiceCreateAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := testutil.MustCreateUser(t, db, "Ada", models.RoleMentee)

	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	ctx := context.Background()
	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID:   user.ID,
		Message:  "Your request to Bea has been accepted.",
		Link:     "/my-requests",
		Metadata: map[string]any{"request_id": "req-1"},
	})
	require.NoError(t, err)
	require.Equal(t, NotificationKindGeneral, dto.Kind)
	require.Equal(t, "req-1", dto.Metadata["request_id"])
	require.False(t, dto.IsRead)

	items, err := svc.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, dto.ID, items[0].ID)
	require.Equal(t, "/my-requests", items[0].Link)
}

func TestNotificationServiceCreateValidates(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateNotificationInput{Message: "hello"})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Create(context.Background(), CreateNotificationInput{UserID: "u", Message: "  "})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestNotificationServiceListIsBoundedNewestFirst(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := testutil.MustCreateUser(t, db, "Ada", models.RoleMentee)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < DefaultNotificationLimit+5; i++ {
		row := models.Notification{UserID: user.ID, Kind: NotificationKindGeneral, Message: fmt.Sprintf("n-%02d", i)}
		row.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.Create(&row).Error)
	}

	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	items, err := svc.ListForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, items, DefaultNotificationLimit)
	require.Equal(t, fmt.Sprintf("n-%02d", DefaultNotificationLimit+4), items[0].Message)
	for i := 1; i < len(items); i++ {
		require.False(t, items[i].CreatedAt.After(items[i-1].CreatedAt))
	}

	limited, err := NewNotificationService(db, WithNotificationLimit(3))
	require.NoError(t, err)
	items, err = limited.ListForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
}

func TestNotificationServiceMarkReadOwnership(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	owner := testutil.MustCreateUser(t, db, "Ada", models.RoleMentee)
	other := testutil.MustCreateUser(t, db, "Cy", models.RoleMentee)

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewNotificationService(db)
	require.NoError(t, err)
	svc.timeNow = func() time.Time { return clock }

	dto, err := svc.Create(context.Background(), CreateNotificationInput{UserID: owner.ID, Message: "hello"})
	require.NoError(t, err)

	_, err = svc.MarkRead(context.Background(), other.ID, dto.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.MarkRead(context.Background(), owner.ID, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.MarkRead(context.Background(), owner.ID, "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	unread, err := svc.CountUnread(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, unread)

	updated, err := svc.MarkRead(context.Background(), owner.ID, dto.ID)
	require.NoError(t, err)
	require.True(t, updated.IsRead)
	require.NotNil(t, updated.ReadAt)
	require.True(t, updated.ReadAt.Equal(clock))

	again, err := svc.MarkRead(context.Background(), owner.ID, dto.ID)
	require.NoError(t, err)
	require.True(t, again.IsRead)

	unread, err = svc.CountUnread(context.Background())
	require.NoError(t, err)
	require.Zero(t, unread)
}

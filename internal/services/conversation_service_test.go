package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mentorlink/internal/database/testutil"
	"github.com/charlesng35/mentorlink/internal/models"
)

func TestConversationServiceListsAcceptedRequestsOnly(t *testing.T) {
	fx := newConversationFixture(t)
	testutil.MustCreateRequest(t, fx.db, fx.mentor.ID, fx.outsider.ID, models.RequestPending)
	testutil.MustCreateRequest(t, fx.db, fx.mentor.ID, fx.outsider.ID, models.RequestRejected)

	svc, err := NewConversationService(fx.db)
	require.NoError(t, err)

	items, err := svc.ListForUser(context.Background(), fx.mentor.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, fx.request.ID, items[0].RequestID)
	require.Equal(t, fx.mentee.ID, items[0].Participant.ID)
	require.Equal(t, fx.mentee.Name, items[0].Participant.Name)

	items, err = svc.ListForUser(context.Background(), fx.mentee.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, fx.mentor.ID, items[0].Participant.ID)
}

func TestConversationServiceEmptyListIsNotNil(t *testing.T) {
	fx := newConversationFixture(t)
	svc, err := NewConversationService(fx.db)
	require.NoError(t, err)

	items, err := svc.ListForUser(context.Background(), fx.outsider.ID)
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)
}

func TestConversationServiceUnreadCounts(t *testing.T) {
	fx := newConversationFixture(t)
	messages, err := NewMessageService(fx.db)
	require.NoError(t, err)
	svc, err := NewConversationService(fx.db)
	require.NoError(t, err)

	unread := func(userID string) int64 {
		items, err := svc.ListForUser(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		return items[0].UnreadCount
	}

	require.Zero(t, unread(fx.mentor.ID))
	require.Zero(t, unread(fx.mentee.ID))

	_, err = messages.CreateMessage(context.Background(), CreateMessageInput{
		Content:    "Hi",
		SenderID:   fx.mentee.ID,
		ReceiverID: fx.mentor.ID,
		RequestID:  fx.request.ID,
	})
	require.NoError(t, err)

	require.EqualValues(t, 1, unread(fx.mentor.ID))
	require.Zero(t, unread(fx.mentee.ID), "sender count must not move")

	_, err = messages.MarkMessagesAsRead(context.Background(), fx.request.ID, fx.mentor.ID)
	require.NoError(t, err)
	require.Zero(t, unread(fx.mentor.ID))
}

func TestConversationServiceOrdersByRecentActivity(t *testing.T) {
	fx := newConversationFixture(t)
	second := testutil.MustCreateUser(t, fx.db, "Dee Mentee", models.RoleMentee)
	older := testutil.MustCreateRequest(t, fx.db, fx.mentor.ID, second.ID, models.RequestAccepted)

	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, fx.db.Model(&models.MentorshipRequest{}).Where("id = ?", fx.request.ID).UpdateColumn("updated_at", base).Error)
	require.NoError(t, fx.db.Model(&models.MentorshipRequest{}).Where("id = ?", older.ID).UpdateColumn("updated_at", base.Add(time.Hour)).Error)

	svc, err := NewConversationService(fx.db)
	require.NoError(t, err)

	items, err := svc.ListForUser(context.Background(), fx.mentor.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, older.ID, items[0].RequestID)
	require.Equal(t, fx.request.ID, items[1].RequestID)

	clock := base.Add(2 * time.Hour)
	messages, err := NewMessageService(fx.db, WithMessageClock(func() time.Time { return clock }))
	require.NoError(t, err)
	_, err = messages.CreateMessage(context.Background(), CreateMessageInput{
		Content:    "bump",
		SenderID:   fx.mentee.ID,
		ReceiverID: fx.mentor.ID,
		RequestID:  fx.request.ID,
	})
	require.NoError(t, err)

	items, err = svc.ListForUser(context.Background(), fx.mentor.ID)
	require.NoError(t, err)
	require.Equal(t, fx.request.ID, items[0].RequestID, "a new message moves its conversation to the top")
	require.EqualValues(t, 1, items[0].UnreadCount)
	require.Zero(t, items[1].UnreadCount)
}

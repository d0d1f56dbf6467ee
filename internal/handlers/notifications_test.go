package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mentorlink/internal/handlers/testutil"
	"github.com/charlesng35/mentorlink/internal/services"
)

func seedNotification(t *testing.T, env *testutil.Env, userID, message string) *services.NotificationDTO {
	t.Helper()
	dto, err := env.Stack.Notifications.Create(context.Background(), services.CreateNotificationInput{
		UserID:  userID,
		Message: message,
	})
	require.NoError(t, err)
	return dto
}

func TestNotificationListAndMarkRead(t *testing.T) {
	env := testutil.NewEnv(t)
	first := seedNotification(t, env, env.Mentee.ID, "older")
	seedNotification(t, env, env.Mentee.ID, "newer")
	seedNotification(t, env, env.Mentor.ID, "not yours")

	rec := env.Do(http.MethodGet, "/api/notifications", nil, env.Mentee)
	testutil.AssertStatus(t, rec, http.StatusOK)

	var items []services.NotificationDTO
	testutil.DecodeResponse(t, rec, &items)
	require.Len(t, items, 2)
	for _, item := range items {
		require.Equal(t, env.Mentee.ID, item.UserID)
		require.False(t, item.IsRead)
	}

	rec = env.Do(http.MethodPatch, "/api/notifications/"+first.ID+"/read", nil, env.Mentee)
	testutil.AssertStatus(t, rec, http.StatusOK)

	var updated services.NotificationDTO
	testutil.DecodeResponse(t, rec, &updated)
	require.Equal(t, first.ID, updated.ID)
	require.True(t, updated.IsRead)
	require.NotNil(t, updated.ReadAt)

	rec = env.Do(http.MethodPatch, "/api/notifications/"+first.ID+"/read", nil, env.Mentee)
	testutil.AssertStatus(t, rec, http.StatusOK)
}

func TestNotificationMarkReadHidesForeignNotifications(t *testing.T) {
	env := testutil.NewEnv(t)
	foreign := seedNotification(t, env, env.Mentor.ID, "mentor only")

	rec := env.Do(http.MethodPatch, "/api/notifications/"+foreign.ID+"/read", nil, env.Mentee)
	testutil.AssertStatus(t, rec, http.StatusNotFound)

	rec = env.Do(http.MethodPatch, "/api/notifications/missing/read", nil, env.Mentee)
	testutil.AssertStatus(t, rec, http.StatusNotFound)

	items, err := env.Stack.Notifications.ListForUser(context.Background(), env.Mentor.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.False(t, items[0].IsRead)
}

func TestInternalNotificationEndpointRequiresAdmin(t *testing.T) {
	env := testutil.NewEnv(t)
	payload := map[string]any{
		"user_id":  env.Mentee.ID,
		"kind":     services.NotificationKindSessionBooked,
		"message":  "Your session with Bea is booked.",
		"link":     "/sessions",
		"metadata": map[string]any{"session_id": "s-1"},
	}

	rec := env.Do(http.MethodPost, "/api/internal/notifications", payload, env.Mentor)
	testutil.AssertStatus(t, rec, http.StatusForbidden)

	rec = env.Do(http.MethodPost, "/api/internal/notifications", payload, env.Admin)
	testutil.AssertStatus(t, rec, http.StatusCreated)

	var created services.NotificationDTO
	testutil.DecodeResponse(t, rec, &created)
	require.Equal(t, env.Mentee.ID, created.UserID)
	require.Equal(t, services.NotificationKindSessionBooked, created.Kind)
	require.Equal(t, "s-1", created.Metadata["session_id"])

	items, err := env.Stack.Notifications.ListForUser(context.Background(), env.Mentee.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestInternalNotificationEndpointValidatesPayload(t *testing.T) {
	env := testutil.NewEnv(t)

	rec := env.Do(http.MethodPost, "/api/internal/notifications", map[string]any{"message": "  "}, env.Admin)
	testutil.AssertStatus(t, rec, http.StatusBadRequest)

	resp := testutil.DecodeResponse(t, rec, nil)
	require.Contains(t, resp.Error.Message, "user id is required")
	require.Contains(t, resp.Error.Message, "message is required")
}

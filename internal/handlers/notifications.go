package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/services"
	"github.com/charlesng35/mentorlink/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for notifications.
type NotificationHandler struct {
	service    *services.NotificationService
	dispatcher services.NotificationDispatcher
}

// NewNotificationHandler constructs a notification handler. Creation goes through the dispatcher so
// online recipients get the realtime push.
func NewNotificationHandler(service *services.NotificationService, dispatcher services.NotificationDispatcher) *NotificationHandler {
	return &NotificationHandler{service: service, dispatcher: dispatcher}
}

// List returns the latest notifications for the current user.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	items, err := h.service.ListForUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// MarkRead marks one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	dto, err := h.service.MarkRead(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Create lets other subsystems notify a user (role changes, booked sessions).
func (h *NotificationHandler) Create(c *gin.Context) {
	var payload services.CreateNotificationInput
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.dispatcher.Dispatch(requestContext(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

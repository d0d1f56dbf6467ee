package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/services"
	"github.com/charlesng35/mentorlink/pkg/response"
)

// ConversationHandler lists the caller's conversations.
type ConversationHandler struct {
	conversations *services.ConversationService
}

// NewConversationHandler constructs a conversation handler.
func NewConversationHandler(conversations *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// List returns one entry per accepted request the caller takes part in, with its unread count.
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	items, err := h.conversations.ListForUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

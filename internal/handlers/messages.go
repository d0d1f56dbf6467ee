package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/services"
	"github.com/charlesng35/mentorlink/pkg/response"
)

// MessageHandler exposes conversation history and read receipts.
type MessageHandler struct {
	messages *services.MessageService
}

// NewMessageHandler constructs a message handler.
func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// History returns every message of a conversation with both participants.
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	history, err := h.messages.GetMessagesForRequest(requestContext(c), c.Param("requestId"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, history)
}

// MarkRead marks the caller's unread messages in a conversation as read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	updated, err := h.messages.MarkMessagesAsRead(requestContext(c), c.Param("requestId"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"updated": updated,
		"message": "Messages marked as read",
	})
}

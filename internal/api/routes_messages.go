package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/handlers"
)

func registerMessageRoutes(api *gin.RouterGroup, handler *handlers.MessageHandler) {
	group := api.Group("/messages")
	{
		group.GET("/:requestId", handler.History)
		group.PUT("/read/:requestId", handler.MarkRead)
	}
}

func registerConversationRoutes(api *gin.RouterGroup, handler *handlers.ConversationHandler) {
	api.GET("/conversations", handler.List)
}

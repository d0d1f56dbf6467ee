package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorlink/internal/auditctx"
	"github.com/charlesng35/mentorlink/internal/middleware"
	apperrors "github.com/charlesng35/mentorlink/pkg/errors"
	"github.com/charlesng35/mentorlink/pkg/response"
)

// requestContext returns the request context, carrying the authenticated actor when there is one.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	ctx := c.Request.Context()
	if userID := c.GetString(middleware.CtxUserIDKey); userID != "" {
		ctx = auditctx.WithActor(ctx, auditctx.Actor{
			UserID:    userID,
			Role:      c.GetString(middleware.CtxRoleKey),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
	}
	return ctx
}

// currentUserID returns the authenticated caller, writing a 401 when the auth middleware did not run.
func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

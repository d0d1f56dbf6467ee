package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/mentorlink/pkg/errors"
	"github.com/charlesng35/mentorlink/pkg/logger"
	"github.com/charlesng35/mentorlink/pkg/response"
)

// Recovery turns a handler panic into a 500 envelope. Responses that were already started,
// such as upgraded websocket connections, are aborted without a body.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.WithModule("http").Error("handler panic",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler renders unknown routes as a NOT_FOUND envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.NewNotFound("no route for "+c.Request.Method+" "+c.Request.URL.Path))
}

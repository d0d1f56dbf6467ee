package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/charlesng35/mentorlink/pkg/errors"
	"github.com/charlesng35/mentorlink/pkg/logger"
)

// Response is the envelope of every REST reply: {success, data, error}.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo is the client-visible part of a failure.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes data inside a successful envelope.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Success: true, Data: data})
}

// Error renders err as an AppError. Internal failures are logged with their cause and the
// client only sees the generic internal message.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if err == nil {
		appErr = appErrors.ErrInternalServer
	}

	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if appErr.IsInternal() {
		logger.WithModule("http").Error("request failed",
			zap.String("path", requestPath(c)),
			zap.Error(err),
		)
		appErr = appErrors.ErrInternalServer
	}

	c.JSON(status, Response{
		Error: &ErrorInfo{Code: appErr.Code, Message: appErr.Message},
	})
}

func requestPath(c *gin.Context) string {
	if c.Request == nil || c.Request.URL == nil {
		return ""
	}
	return c.Request.URL.Path
}

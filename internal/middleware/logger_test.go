package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/mentorlink/pkg/logger"
)

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zap.DebugLevel)
	previous := logger.Logger()
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(previous) })

	r := gin.New()
	r.Use(Logger())
	r.GET("/ping", func(c *gin.Context) {
		c.Set(CtxUserIDKey, "user-1")
		c.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "pong", w.Body.String())

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/ping", fields["path"])
	require.Equal(t, int64(http.StatusOK), fields["status"])
	require.Equal(t, "user-1", fields["user_id"])
	require.Equal(t, "http", fields["module"])
}

func TestAccessLevel(t *testing.T) {
	require.Equal(t, zapcore.ErrorLevel, accessLevel(http.StatusBadGateway, "/api/messages"))
	require.Equal(t, zapcore.WarnLevel, accessLevel(http.StatusForbidden, "/api/messages"))
	require.Equal(t, zapcore.InfoLevel, accessLevel(http.StatusOK, "/api/conversations"))
	require.Equal(t, zapcore.DebugLevel, accessLevel(http.StatusOK, "/health/ready"))
	require.Equal(t, zapcore.ErrorLevel, accessLevel(http.StatusServiceUnavailable, "/health/ready"))
}

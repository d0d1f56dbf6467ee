package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/mentorlink/internal/auth"
	"github.com/charlesng35/mentorlink/internal/middleware"
	"github.com/charlesng35/mentorlink/internal/realtime"
	"github.com/charlesng35/mentorlink/pkg/errors"
	"github.com/charlesng35/mentorlink/pkg/response"
)

// RealtimeHandler authenticates the websocket handshake and hands the connection to the gateway.
type RealtimeHandler struct {
	gateway *realtime.Gateway
	jwt     *iauth.JWTService
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(gateway *realtime.Gateway, jwt *iauth.JWTService) *RealtimeHandler {
	return &RealtimeHandler{gateway: gateway, jwt: jwt}
}

// Stream upgrades the request once the token resolves to a user. Browsers cannot set headers on
// websocket handshakes, so the token may also arrive as a query parameter.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.gateway == nil || h.jwt == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	token := handshakeToken(c)
	if token == "" {
		c.Header("WWW-Authenticate", "Bearer")
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil || strings.TrimSpace(claims.UserID) == "" {
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	h.gateway.Serve(claims.UserID, c.Writer, c.Request)
}

func handshakeToken(c *gin.Context) string {
	for _, key := range []string{"token", "access_token"} {
		if token := strings.TrimSpace(c.Query(key)); token != "" {
			return token
		}
	}
	return middleware.BearerToken(c.GetHeader("Authorization"))
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/mentorlink/internal/auth"
	"github.com/charlesng35/mentorlink/pkg/errors"
	"github.com/charlesng35/mentorlink/pkg/logger"
	"github.com/charlesng35/mentorlink/pkg/response"
)

// Gin context keys set by Auth.
const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxRoleKey   = "userRole"
)

// Auth requires a valid bearer token and stores the caller's claims on the context.
// Every failure is a 401; the challenge header tells clients whether a token was present.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			rejectUnauthenticated(c, `Bearer realm="api"`)
			return
		}

		claims, err := jwt.ValidateAccessToken(raw)
		if err != nil {
			logger.WithModule("auth").Debug("token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			rejectUnauthenticated(c, `Bearer realm="api", error="invalid_token"`)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxRoleKey, claims.Role)
		c.Next()
	}
}

func rejectUnauthenticated(c *gin.Context, challenge string) {
	c.Header("WWW-Authenticate", challenge)
	response.Error(c, errors.ErrUnauthorized)
	c.Abort()
}

// BearerToken returns the credential of an "Authorization: Bearer <token>" value, or "".
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

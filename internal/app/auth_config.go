package app

import (
	"strings"

	"github.com/charlesng35/mentorlink/internal/auth"
)

// JWTServiceConfig maps the auth section onto the token verifier settings.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	out := auth.JWTConfig{
		Secret:         strings.TrimSpace(c.JWT.Secret),
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		AccessTokenTTL: c.JWT.TTL,
		Leeway:         max(c.JWT.Leeway, 0),
	}
	if out.AccessTokenTTL <= 0 {
		out.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	return out
}

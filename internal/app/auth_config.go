package app

import (
	"strings"
	"time"

	"github.com/charlesng35/clinic/internal/auth"
)

const defaultResetTokenTTL = time.Hour

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         strings.TrimSpace(c.JWT.Secret),
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		AccessTokenTTL: ttl,
	}
}

// ResetTTL returns how long password reset tokens stay valid.
func (c AuthConfig) ResetTTL() time.Duration {
	if c.ResetTokenTTL <= 0 {
		return defaultResetTokenTTL
	}
	return c.ResetTokenTTL
}

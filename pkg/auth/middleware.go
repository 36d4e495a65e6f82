package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const principalKey = "memra.principal"

// Middleware authenticates the Authorization header. No header continues
// as a guest; an invalid or expired token is answered with 403.
func Middleware(a Authenticator, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		p, err := a.Authenticate(c.GetHeader("Authorization"))
		switch {
		case errors.Is(err, ErrMissing):
			p = Guest()
		case err != nil:
			logger.Info("authentication rejected",
				"path", c.FullPath(),
				"error", err,
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "denied"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// FromContext returns the principal set by Middleware, or a guest.
func FromContext(c *gin.Context) Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(Principal); ok {
			return p
		}
	}
	return Guest()
}

// SetPrincipal stores p on the request context, for tests and alternative
// authenticators.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
}

package middlewares

import (
	"errors"
	"strings"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/config"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
	"github.com/gin-gonic/gin"
)

// sessionToken reads the session cookie, falling back to a bearer token.
func sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(config.SessionCookieName); err == nil && token != "" {
		return token
	}
	auth := c.Request.Header.Get("Authorization")
	const bearer = "Bearer "
	if len(auth) > len(bearer) && strings.EqualFold(auth[:len(bearer)], bearer) {
		return strings.TrimSpace(auth[len(bearer):])
	}
	return ""
}

// SessionMiddleware puts the caller's identity on the request context. A
// request without a valid session passes through anonymous and is turned
// away later by RequireAuth, so a stale cookie never blocks a new login.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.Next()
			return
		}
		identity, err := models.ValidateSession(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, utils.ErrorUnauthorized) && !errors.Is(err, models.ErrSessionRevoked) {
				config.LogError(config.GetLogger(), "SessionMiddleware", "ValidateSession", "session lookup failed", nil, err)
			}
			c.Next()
			return
		}

		ctx := utils.SetIdentityInContext(c.Request.Context(), identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

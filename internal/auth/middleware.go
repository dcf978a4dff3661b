package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// HeaderServiceToken carries the shared secret for trusted
// service-to-service calls (continue self-invocations).
const HeaderServiceToken = "X-Service-Token"

// RequireAccessToken verifies an access token and injects identity into request context.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(authorizationHeader)
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.Role)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// Identify resolves a caller identity from a bearer token without aborting,
// for endpoints that mix user-initiated and service-to-service actions.
func Identify(m *Manager, c *gin.Context) (Claims, bool) {
	raw := c.GetHeader(authorizationHeader)
	if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
		return Claims{}, false
	}
	claims, err := m.Verify(strings.TrimPrefix(raw, bearerPrefix), TokenTypeAccess, time.Now())
	if err != nil {
		return Claims{}, false
	}
	return claims, true
}

// ValidServiceToken compares the request's service token against the
// configured secret in constant time.
func ValidServiceToken(c *gin.Context, want string) bool {
	if want == "" {
		return false
	}
	got := c.GetHeader(HeaderServiceToken)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

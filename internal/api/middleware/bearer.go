package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/eventhub/internal/auth"
	"example.com/eventhub/internal/models"
)

// Context keys set by BearerAuth
const (
	ContextUserKey   = "auth.user"
	ContextClaimsKey = "auth.claims"
)

// Authenticator resolves a bearer access token to a user
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*models.User, *auth.Claims, error)
}

// BearerToken extracts the bearer token from an Authorization header.
// The second return is false when the header is missing or malformed.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}

// BearerAuth rejects requests without a valid access token and stores the
// resolved user on the request context.
func BearerAuth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		user, claims, err := authenticator.Authenticate(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// CurrentUser returns the authenticated user stored by BearerAuth
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

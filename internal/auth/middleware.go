package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Identity is the authenticated user attached to a request.
type Identity struct {
	ID    string
	Role  string
	Email string
	Name  string
}

// ResolverFunc loads the user record behind a token subject. Returning an
// error rejects the request; deleted users hold no valid sessions.
type ResolverFunc func(ctx context.Context, userID string) (Identity, error)

// Authenticated enforces bearer JWT tokens and resolves the subject to a
// user record before any handler runs.
func Authenticated(tokens *Tokens, resolve ResolverFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "invalid or expired token"})
			return
		}
		ident, err := resolve(c.Request.Context(), claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "unknown user"})
			return
		}
		c.Set(identityKey, ident)
		c.Next()
	}
}

// RequireRole rejects requests whose identity holds none of the allowed roles.
// It must run after Authenticated.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "missing identity"})
			return
		}
		for _, role := range roles {
			if ident.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "insufficient role"})
	}
}

// CurrentIdentity returns the identity set by Authenticated.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	val, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	ident, ok := val.(Identity)
	return ident, ok
}

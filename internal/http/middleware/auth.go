// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file identifies the caller and gates routes by principal. Identification
// (Authenticate) never rejects a request; the Require* guards do, always with
// the same body so a caller cannot tell which check failed.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leadops-backend/internal/auth"
)

const (
	ctxKeyPrincipal = "principal"
	// ctxKeyUserID mirrors Principal.Key() for loggers and limiters.
	ctxKeyUserID = "userID"
)

// Authenticator resolves an Authorization header to a principal.
type Authenticator interface {
	Authenticate(header string) (auth.Principal, bool)
}

// Authenticate stores the caller's principal in the Gin context. Requests
// without a recognized credential continue as anonymous.
func Authenticate(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := a.Authenticate(c.GetHeader("Authorization")); ok {
			c.Set(ctxKeyPrincipal, p)
			c.Set(ctxKeyUserID, p.Key())
		}
		c.Next()
	}
}

// PrincipalFrom returns the principal set by Authenticate, or the anonymous
// principal.
func PrincipalFrom(c *gin.Context) auth.Principal {
	if v, ok := c.Get(ctxKeyPrincipal); ok {
		if p, ok := v.(auth.Principal); ok {
			return p
		}
	}
	return auth.Principal{}
}

// RequireServiceOrAdmin admits the ingestion service and admins.
func RequireServiceOrAdmin() gin.HandlerFunc {
	return require(func(p auth.Principal) bool { return p.IsService() || p.IsAdmin() })
}

// RequireAdmin admits admins only.
func RequireAdmin() gin.HandlerFunc {
	return require(auth.Principal.IsAdmin)
}

func require(allowed func(auth.Principal) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allowed(PrincipalFrom(c)) {
			c.Next()
			return
		}
		c.Header("WWW-Authenticate", `Bearer realm="api"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":      "unauthorized",
			"code":       "unauthorized",
			"request_id": requestIDFrom(c),
		})
	}
}

// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on unsafe requests and
// detects replays. A replay is a request whose (principal, scope, key) was
// already completed inside the idempotency window; the middleware marks it so
// the handler can return the stored resource instead of repeating side
// effects (such as triggering the scraping workflow twice), and so the rate
// limiter lets it through for free.
//
// Persistence stays behind the IdempotencyLookup function; the middleware
// itself only deals with headers and context.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey      = "idem.key"
	ctxKeyIdemScope    = "idem.scope"
	ctxKeyIdemReplay   = "idem.replay"
	ctxKeyIdemResource = "idem.resource"
	ctxKeyRateBypass   = "rate.bypass"
)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IdempotencyScope is the scope a key is bound to: method plus route
// template, e.g. "POST /api/v1/zip-requests".
func IdempotencyScope(c *gin.Context) string {
	if s := c.GetString(ctxKeyIdemScope); s != "" {
		return s
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return c.Request.Method + " " + path
}

// IdempotencyPrincipal is the identity a key is bound to. Anonymous callers
// share the empty principal, which is harmless because every route using
// idempotency requires authentication.
func IdempotencyPrincipal(c *gin.Context) string {
	return PrincipalFrom(c).Key()
}

// IsReplay reports whether the request replays a completed operation.
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyIdemReplay)
}

// ReplayResource returns the resource id and status recorded for a replay.
func ReplayResource(c *gin.Context) (ReplayRecord, bool) {
	v, ok := c.Get(ctxKeyIdemResource)
	if !ok {
		return ReplayRecord{}, false
	}
	r, ok := v.(ReplayRecord)
	return r, ok
}

// ReplayRecord is what a completed request left behind.
type ReplayRecord struct {
	ResourceID string
	Status     int
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup finds a still-valid record for (principal, scope, key).
// found=false with a nil error means "not seen". Lookup errors are logged and
// the request proceeds as new.
type IdempotencyLookup func(ctx context.Context, principal, scope, key string, now time.Time) (rec ReplayRecord, found bool, err error)

// IdempotencyValidator validates the header when present (400 on a malformed
// key), stashes key and scope, and consults lookup to flag replays. Requests
// without the header pass through untouched.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":      "invalid Idempotency-Key",
				"code":       "bad_idempotency_key",
				"request_id": requestIDFrom(c),
			})
			return
		}

		scope := IdempotencyScope(c)
		c.Set(ctxKeyIdemKey, key)
		c.Set(ctxKeyIdemScope, scope)

		if lookup != nil {
			rec, found, err := lookup(c.Request.Context(), IdempotencyPrincipal(c), scope, key, time.Now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			case found:
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyIdemResource, rec)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

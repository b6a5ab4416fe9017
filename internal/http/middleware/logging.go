// Package middleware holds the Gin middleware of the leadops API: request
// correlation, access logging, authentication guards, rate limiting,
// idempotency, metrics and response hardening.
//
// Order matters. RequestID runs first, then Authenticate, then Logger (or
// RedactingLogger) so access lines carry the principal, then Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDHeader    = "X-Request-ID"
	requestIDKey       = "requestID"
	loggerKey          = "logger"
	maxRequestIDLength = 128
	maxQueryLogLength  = 2048
)

// RequestID echoes the caller's X-Request-ID, or mints a UUID when the header
// is absent or longer than maxRequestIDLength.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if n := len(rid); n == 0 || n > maxRequestIDLength {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

// requestIDFrom returns the ID set by RequestID, or "".
func requestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

// attachLogger stores l for LoggerFrom and for zerolog.Ctx on the request
// context.
func attachLogger(c *gin.Context, l *zerolog.Logger) {
	c.Set(loggerKey, l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

// routeOf is the matched route template, or the raw path for 404s.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// requestLogger derives the per-request logger carrying correlation and
// request fields.
func requestLogger(c *gin.Context) zerolog.Logger {
	uid, _ := c.Get(ctxKeyUserID)
	return log.With().
		Str("request_id", requestIDFrom(c)).
		Str("principal", asString(uid)).
		Str("method", c.Request.Method).
		Str("path", routeOf(c)).
		Str("remote_ip", c.ClientIP()).
		Str("user_agent", c.Request.UserAgent()).
		Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
		Int64("bytes_in", c.Request.ContentLength).
		Logger()
}

// accessLevel picks the level of the access line: error for 5xx or collected
// handler errors, warn for 4xx, info otherwise.
func accessLevel(status int, errs int) zerolog.Level {
	switch {
	case errs > 0 || status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// Logger writes one access line per request and makes the request logger
// available through LoggerFrom and zerolog.Ctx.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		l := requestLogger(c)
		attachLogger(c, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.WithLevel(accessLevel(status, len(c.Errors))).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size())
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Msg("request")
	}
}

// Recovery turns a panic into a logged stack trace and, unless the response
// has already started, the standard 500 envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := requestIDFrom(c)
			ev := LoggerFrom(c).Error()
			if _, scoped := c.Get(loggerKey); !scoped {
				ev = ev.Str("request_id", rid)
			}
			ev.Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "internal server error",
				"code":       "internal_error",
				"request_id": rid,
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or a plain global logger when
// none was attached.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to n bytes plus an ellipsis; n <= 0 keeps s whole.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

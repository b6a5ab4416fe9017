package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc names the bucket a request draws tokens from.
type KeyFunc func(*gin.Context) string

// KeyByPrincipalOrIP gives every authenticated principal its own bucket
// ("service", "user:<id>") and falls back to "ip:<addr>" for anonymous callers.
func KeyByPrincipalOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if k := PrincipalFrom(c).Key(); k != "" {
			return k
		}
		return "ip:" + c.ClientIP()
	}
}

const (
	bucketIdleTTL = 10 * time.Minute
	sweepEvery    = 5000
)

type bucket struct {
	lim  *rate.Limiter
	used time.Time
}

// RateLimiter hands out one token bucket per key. Buckets idle for
// bucketIdleTTL are swept every sweepEvery lookups. It is process-local and
// safe for concurrent use.
type RateLimiter struct {
	every rate.Limit
	burst int
	key   KeyFunc
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups int
}

// NewRateLimiter refills rps tokens per second up to burst, at least 1.
func NewRateLimiter(rps float64, burst int, key KeyFunc) *RateLimiter {
	return &RateLimiter{
		every:   rate.Limit(rps),
		burst:   max(burst, 1),
		key:     key,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.lookups++; rl.lookups >= sweepEvery {
		rl.lookups = 0
		for k, b := range rl.buckets {
			if now.Sub(b.used) >= bucketIdleTTL {
				delete(rl.buckets, k)
			}
		}
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.every, rl.burst)}
		rl.buckets[key] = b
	}
	b.used = now
	return b.lim
}

// take spends one token for c, or reports how long the caller must wait.
func (rl *RateLimiter) take(c *gin.Context) (time.Duration, bool) {
	res := rl.bucketFor(rl.key(c)).ReserveN(rl.now(), 1)
	if !res.OK() {
		return time.Second, false
	}
	if wait := res.DelayFrom(rl.now()); wait > 0 {
		res.CancelAt(rl.now())
		return wait, false
	}
	return 0, true
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay. Replays do not spend tokens.
func IsRateBypass(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyRateBypass)
	b, _ := v.(bool)
	return b
}

// Handler limits every request with rl.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return limitWith(func(*gin.Context) *RateLimiter { return rl })
}

// Tiered limits admin principals with admin and everyone else with def.
func Tiered(def, admin *RateLimiter) gin.HandlerFunc {
	return limitWith(func(c *gin.Context) *RateLimiter {
		if PrincipalFrom(c).IsAdmin() {
			return admin
		}
		return def
	})
}

func limitWith(pick func(*gin.Context) *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsRateBypass(c) {
			if wait, ok := pick(c).take(c); !ok {
				rejectRateLimited(c, wait)
				return
			}
		}
		c.Next()
	}
}

// rejectRateLimited answers 429 with Retry-After in whole seconds, rounded up.
func rejectRateLimited(c *gin.Context, wait time.Duration) {
	secs := max(int(math.Ceil(wait.Seconds())), 1)
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":      "rate limit exceeded",
		"code":       "rate_limited",
		"request_id": requestIDFrom(c),
	})
}

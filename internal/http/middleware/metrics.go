// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file records Prometheus HTTP metrics under the leadops namespace.
// Paths are labeled by route template and unmatched requests share one label,
// so scanners cannot inflate series cardinality. The caller label separates
// scraper traffic from dashboard traffic.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tbourn/leadops-backend/internal/auth"
)

const (
	metricsNamespace = "leadops"
	unmatchedRoute   = "unmatched"
	anonymousCaller  = "anonymous"
)

var (
	httpReqs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route template, status and caller kind.",
	}, []string{"method", "path", "status", "caller"})

	httpLat = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_inflight",
		Help:      "Requests currently being served.",
	})

	httpRespSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_response_size_bytes",
		Help:      "HTTP response body size.",
		Buckets:   prometheus.ExponentialBuckets(128, 4, 8), // 128B..2MiB
	}, []string{"method", "path"})
)

// callerKind labels the principal set by Authenticate.
func callerKind(c *gin.Context) string {
	if k := PrincipalFrom(c).Kind; k != auth.KindAnonymous {
		return k
	}
	return anonymousCaller
}

// Metrics records request count, latency, in-flight gauge and response size.
// It must run after Authenticate for the caller label to be meaningful.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, path, status, callerKind(c)).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

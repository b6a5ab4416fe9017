package middleware

import (
	"bytes"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name     string
		opt      SecurityOptions
		rid      string // X-Request-ID already on the response
		expose   string // pre-existing Access-Control-Expose-Headers
		tls      bool
		fwdProto string
		want     map[string]string // "" means must be absent
	}{
		{
			name: "baseline only",
			rid:  "rid-1",
			want: map[string]string{
				"X-Content-Type-Options":        "nosniff",
				"X-Frame-Options":               "DENY",
				"Referrer-Policy":               "no-referrer",
				"Permissions-Policy":            "",
				"Cache-Control":                 "",
				"Strict-Transport-Security":     "",
				"Access-Control-Expose-Headers": "X-Request-ID",
			},
		},
		{
			name:   "expose list extended, not duplicated",
			rid:    "rid-2",
			expose: "ETag",
			want:   map[string]string{"Access-Control-Expose-Headers": "ETag, X-Request-ID"},
		},
		{
			name:   "expose list already has request id",
			rid:    "rid-3",
			expose: "X-Request-ID, ETag",
			want:   map[string]string{"Access-Control-Expose-Headers": "X-Request-ID, ETag"},
		},
		{
			name: "no request id, nothing exposed",
			want: map[string]string{"Access-Control-Expose-Headers": ""},
		},
		{
			name: "policy and no-store",
			opt:  SecurityOptions{EnablePolicy: true, NoStore: true},
			want: map[string]string{
				"Permissions-Policy":                "geolocation=(), microphone=(), camera=(), payment=()",
				"X-Permitted-Cross-Domain-Policies": "none",
				"Cache-Control":                     "no-store",
				"Pragma":                            "no-cache",
				"Expires":                           "0",
			},
		},
		{
			name: "hsts skipped on plain http",
			opt:  SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour},
			want: map[string]string{"Strict-Transport-Security": ""},
		},
		{
			name: "hsts on tls",
			opt:  SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour},
			tls:  true,
			want: map[string]string{"Strict-Transport-Security": "max-age=3600; includeSubDomains; preload"},
		},
		{
			name:     "hsts behind a tls-terminating proxy, default max-age",
			opt:      SecurityOptions{EnableHSTS: true},
			fwdProto: "HTTPS",
			want:     map[string]string{"Strict-Transport-Security": "max-age=15552000; includeSubDomains; preload"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) {
				if tc.rid != "" {
					c.Header(requestIDHeader, tc.rid)
				}
				if tc.expose != "" {
					c.Header("Access-Control-Expose-Headers", tc.expose)
				}
				c.Next()
			})
			r.Use(SecurityHeaders(tc.opt))
			r.GET("/api/v1/leads", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil)
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if tc.fwdProto != "" {
				req.Header.Set("X-Forwarded-Proto", tc.fwdProto)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			for k, v := range tc.want {
				if got := w.Header().Get(k); got != v {
					t.Fatalf("%s = %q; want %q", k, got, v)
				}
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), BodyLimit(16))
	r.POST("/leads", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "read failed")
			return
		}
		c.String(http.StatusOK, string(b))
	})

	t.Run("small body passes", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/leads", strings.NewReader(`{"a":1}`)))
		if w.Code != http.StatusOK || w.Body.String() != `{"a":1}` {
			t.Fatalf("got %d %q", w.Code, w.Body.String())
		}
	})

	t.Run("declared oversize rejected up front", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/leads", bytes.NewReader(make([]byte, 64))))
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("want 413, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `"code":"body_too_large"`) {
			t.Fatalf("unexpected body %s", w.Body.String())
		}
	})

	t.Run("undeclared oversize fails on read", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/leads", io.NopCloser(bytes.NewReader(make([]byte, 64))))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("want 413, got %d", w.Code)
		}
	})
}

func TestBodyLimit_DefaultCap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodyLimit(0))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.ContentLength = DefaultMaxBodyBytes + 1
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", w.Code)
	}
}

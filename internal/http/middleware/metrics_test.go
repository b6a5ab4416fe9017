package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/leadops-backend/internal/auth"
)

func TestMetrics_LabelsByRouteStatusAndCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Authenticate(stubAuthenticator(testPrincipals)))
	r.Use(Metrics())
	r.GET("/leads/:id", func(c *gin.Context) { c.String(http.StatusOK, "lead") })
	r.DELETE("/leads/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	type labels struct{ method, path, status, caller string }
	counter := func(l labels) float64 {
		return testutil.ToFloat64(httpReqs.WithLabelValues(l.method, l.path, l.status, l.caller))
	}

	svcGet := labels{"GET", "/leads/:id", "200", auth.KindService}
	anonGet := labels{"GET", "/leads/:id", "200", anonymousCaller}
	userDel := labels{"DELETE", "/leads/:id", "204", auth.KindUser}
	miss := labels{"GET", unmatchedRoute, "404", anonymousCaller}
	base := map[labels]float64{}
	for _, l := range []labels{svcGet, anonGet, userDel, miss} {
		base[l] = counter(l)
	}

	for _, tc := range []struct {
		method, path, authz string
		want                int
	}{
		{http.MethodGet, "/leads/abc", "Bearer svc", http.StatusOK},
		{http.MethodGet, "/leads/def", "Bearer svc", http.StatusOK},
		{http.MethodGet, "/leads/abc", "", http.StatusOK},
		{http.MethodDelete, "/leads/abc", "Bearer admin", http.StatusNoContent},
		{http.MethodGet, "/wp-admin.php", "", http.StatusNotFound},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.authz != "" {
			req.Header.Set("Authorization", tc.authz)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s %s -> %d, want %d", tc.method, tc.path, w.Code, tc.want)
		}
	}

	for l, delta := range map[labels]float64{svcGet: 2, anonGet: 1, userDel: 1, miss: 1} {
		if got := counter(l); got != base[l]+delta {
			t.Fatalf("%+v = %v; want %v", l, got, base[l]+delta)
		}
	}
	if got := counter(labels{"GET", "/wp-admin.php", "404", anonymousCaller}); got != 0 {
		t.Fatalf("raw path must not become a label, got %v", got)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/reviews/:id", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	r.DELETE("/reviews/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseGet := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/reviews/:id", "200"))
	baseDel := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/reviews/:id", "204"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404"))

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/reviews/1", http.StatusOK},
		{http.MethodGet, "/reviews/2", http.StatusOK},
		{http.MethodDelete, "/reviews/1", http.StatusNoContent},
		{http.MethodGet, "/nope", http.StatusNotFound},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s %s -> %d", tc.method, tc.path, w.Code)
		}
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/reviews/:id", "200")); got != baseGet+2 {
		t.Fatalf("GET counter = %v, want %v", got, baseGet+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/reviews/:id", "204")); got != baseDel+1 {
		t.Fatalf("DELETE counter = %v, want %v", got, baseDel+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404")); got != baseMiss+1 {
		t.Fatalf("unmatched counter = %v, want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v", got)
	}
}

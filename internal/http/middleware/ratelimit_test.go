package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if key := KeyByUserOrIP()(c); key != "ip:203.0.113.9" {
		t.Fatalf("expected ip key, got %q", key)
	}
	c.Set(CtxUserID, "u123")
	if key := KeyByUserOrIP()(c); key != "user:u123" {
		t.Fatalf("expected user key, got %q", key)
	}
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(2, 0, nil)
	if rl.burst != 1 || rl.keyFn == nil {
		t.Fatalf("defaults not applied: burst=%d", rl.burst)
	}
	lim := rl.limiterFor("k1")
	if rl.limiterFor("k1") != lim {
		t.Fatal("bucket should be reused per key")
	}
	if rl.limiterFor("k2") == lim {
		t.Fatal("keys must not share buckets")
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, nil)
	rl.now = func() time.Time { return now }

	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: now.Add(-time.Hour)}
	rl.visitors["fresh"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: now.Add(-time.Minute)}
	rl.lookups = sweepEvery - 1

	rl.limiterFor("new")

	if _, ok := rl.visitors["old"]; ok {
		t.Fatal("idle bucket should be swept")
	}
	for _, k := range []string{"fresh", "new"} {
		if _, ok := rl.visitors[k]; !ok {
			t.Fatalf("bucket %q should survive", k)
		}
	}
	if rl.lookups != 0 {
		t.Fatalf("lookup counter not reset: %d", rl.lookups)
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 1, KeyByUserOrIP())

	r := gin.New()
	r.Use(RequestID(), func(c *gin.Context) {
		if c.GetHeader("X-Replay") == "1" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}, rl.Handler())
	r.POST("/reviews", func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(replay bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/reviews", nil)
		req.RemoteAddr = "198.51.100.1:1000"
		if replay {
			req.Header.Set("X-Replay", "1")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := send(false); w.Code != http.StatusCreated {
		t.Fatalf("first request: %d", w.Code)
	}
	w := send(false)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second request: %d retry=%q", w.Code, w.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "too_many_requests" || body["error"] == "" || body["request_id"] == "" {
		t.Fatalf("429 body = %v", body)
	}
	if w := send(true); w.Code != http.StatusCreated {
		t.Fatalf("replays bypass the limiter, got %d", w.Code)
	}
}

package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestKeyByParticipantOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	key := KeyByParticipantOrIP()
	if got := key(c); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set(ctxKeyUserID, "p1")
	if got := key(c); got != "p:p1" {
		t.Fatalf("participant key = %q", got)
	}
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimitOptions{RPS: 2})
	if rl.burst != 1 || rl.ttl != 10*time.Minute || rl.key == nil {
		t.Fatalf("defaults not applied: burst=%d ttl=%v", rl.burst, rl.ttl)
	}
	lim := rl.limiterFor("k1")
	if rl.limiterFor("k1") != lim {
		t.Fatalf("bucket not reused")
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitOptions{RPS: 1, Burst: 1, TTL: time.Minute})
	rl.now = func() time.Time { return now }

	rl.limiterFor("old")
	now = now.Add(2 * time.Minute)
	rl.lookups = sweepEvery - 1
	rl.limiterFor("new")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["old"]; ok {
		t.Fatalf("idle bucket survived the sweep")
	}
	if _, ok := rl.buckets["new"]; !ok || rl.lookups != 0 {
		t.Fatalf("sweep state wrong: lookups=%d", rl.lookups)
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(RateLimitOptions{
		RPS:   0.001,
		Burst: 1,
		Key:   func(*gin.Context) string { return "same" },
	})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	base := testutil.ToFloat64(rateLimited)

	if w := doGet(r, "/x", nil); w.Code != http.StatusOK {
		t.Fatalf("first -> %d", w.Code)
	}
	w := doGet(r, "/x", nil)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second -> %d retry=%q", w.Code, w.Header().Get("Retry-After"))
	}
	if w := doGet(r, "/x", map[string]string{"X-Replay": "1"}); w.Code != http.StatusOK {
		t.Fatalf("replay -> %d", w.Code)
	}
	if got := testutil.ToFloat64(rateLimited); got != base+1 {
		t.Fatalf("rate_limited = %v; want %v", got, base+1)
	}
}

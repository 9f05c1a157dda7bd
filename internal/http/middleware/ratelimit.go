package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to its rate-limit bucket.
type KeyFunc func(*gin.Context) string

// KeyByParticipantOrIP buckets authenticated callers by participant id and
// everyone else by client IP. The prefixes keep the two spaces apart.
func KeyByParticipantOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if id := UserID(c); id != "" {
			return "p:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

var rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "veil_http_rate_limited_total",
	Help: "Requests rejected by the rate limiter.",
})

func init() {
	prometheus.MustRegister(rateLimited)
}

// RateLimitOptions configures NewRateLimiter.
type RateLimitOptions struct {
	RPS   float64       // tokens per second
	Burst int           // bucket size; <= 0 means 1
	TTL   time.Duration // idle buckets are dropped after this; <= 0 means 10m
	Key   KeyFunc       // nil means KeyByParticipantOrIP
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token bucket per key. Idle buckets are
// evicted every sweepEvery lookups. Safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	key   KeyFunc
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups uint64
}

const sweepEvery = 5000

// NewRateLimiter builds a limiter from opts.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	rl := &RateLimiter{
		limit:   rate.Limit(opts.RPS),
		burst:   opts.Burst,
		ttl:     opts.TTL,
		key:     opts.Key,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	if rl.burst <= 0 {
		rl.burst = 1
	}
	if rl.ttl <= 0 {
		rl.ttl = 10 * time.Minute
	}
	if rl.key == nil {
		rl.key = KeyByParticipantOrIP()
	}
	return rl
}

// limiterFor returns the bucket for key. Eviction runs before the lookup so
// a stale bucket is replaced rather than refreshed.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rl.limit, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay. Replays never consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyRateBypass)
	b, _ := v.(bool)
	return b
}

// Handler enforces the limit and answers 429 with Retry-After: 1.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.limiterFor(rl.key(c)).Allow() {
			c.Next()
			return
		}
		rateLimited.Inc()
		c.Header("Retry-After", "1")
		abortJSON(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}

// Package middleware holds the Gin middleware shared by the HTTP layer:
// identity, idempotency, access logging, rate limiting, security headers and
// Prometheus instrumentation.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/veil-backend/internal/clock"
)

// HeaderIdempotencyKey lets clients retry a message submission safely.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key validated by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a stored result already exists for this key.
func IsReplay(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyIdemReplay)
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts the key alphabet; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Param names the route parameter holding the match id. Defaults to "id".
	Param string
	// Clock supplies the instant handed to the lookup. Defaults to clock.System.
	Clock clock.Clock
}

// IdempotencyLookup reports whether a live record exists for the caller, match
// and key. Lookup errors are ignored and the request proceeds normally.
type IdempotencyLookup func(ctx context.Context, userID, matchID, key string, now time.Time) (bool, error)

// IdempotencyValidator validates the Idempotency-Key header when present and
// marks known keys as replays so the handler can return the stored message
// and the rate limiter can let them through. Requests without the header pass
// untouched; a malformed key is rejected with 400.
//
// It reads the caller from "userID", so it must run after Authenticate.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	param := opts.Param
	if param == "" {
		param = "id"
	}
	clk := clock.Or(opts.Clock)

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		uid, matchID := UserID(c), c.Param(param)
		if lookup != nil && uid != "" && matchID != "" {
			exists, err := lookup(c.Request.Context(), uid, matchID, key, clk.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

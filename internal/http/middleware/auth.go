package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const (
	// ctxKeyUserID is where Authenticate stores the caller's participant id.
	ctxKeyUserID = "userID"

	// HeaderUserID carries the participant id when no JWT secret is configured.
	HeaderUserID = "X-User-ID"

	// HeaderCronSecret carries the shared secret for admin routes.
	HeaderCronSecret = "X-Cron-Secret"
)

// AuthOptions configures Authenticate.
//
// With a JWTSecret, callers must send "Authorization: Bearer <token>" signed
// with HS256; the participant id is the token subject, or the userId claim
// when the subject is empty. Without one, the X-User-ID header is trusted as
// is, which only makes sense behind a gateway that sets it or in development.
type AuthOptions struct {
	JWTSecret string
	Issuer    string // optional; enforced when set
}

// Claims is the token shape accepted by Authenticate.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

var errNoIdentity = errors.New("missing caller identity")

// Authenticate resolves the caller and stores the id under "userID". Requests
// without a usable identity are rejected with 401 before reaching handlers.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	secret := []byte(opts.JWTSecret)
	popts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if opts.Issuer != "" {
		popts = append(popts, jwt.WithIssuer(opts.Issuer))
	}
	parser := jwt.NewParser(popts...)

	resolve := func(c *gin.Context) (string, error) {
		if len(secret) == 0 {
			if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" {
				return id, nil
			}
			return "", errNoIdentity
		}
		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			return "", errNoIdentity
		}
		var claims Claims
		if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}); err != nil {
			return "", err
		}
		id := claims.Subject
		if id == "" {
			id = claims.UserID
		}
		if id = strings.TrimSpace(id); id == "" {
			return "", errNoIdentity
		}
		return id, nil
	}

	return func(c *gin.Context) {
		id, err := resolve(c)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("authentication failed")
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "missing or invalid credentials")
			return
		}
		c.Set(ctxKeyUserID, id)

		ctx := c.Request.Context()
		l := zerolog.Ctx(ctx).With().Str("user_id", id).Logger()
		c.Request = c.Request.WithContext(l.WithContext(ctx))
		c.Next()
	}
}

// SignToken issues an HS256 token for id. It exists for tooling and tests;
// production tokens come from the identity provider.
func SignToken(secret, id string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = id
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: claims}).SignedString([]byte(secret))
}

// UserID returns the participant id stored by Authenticate.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CronSecret guards admin routes with a shared secret, accepted either in
// X-Cron-Secret or as a bearer token.
func CronSecret(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderCronSecret)
		if got == "" {
			got, _ = bearer(c.GetHeader("Authorization"))
		}
		if len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid cron secret")
			return
		}
		c.Next()
	}
}

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

// abortJSON writes the error envelope shared with the handlers package.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}

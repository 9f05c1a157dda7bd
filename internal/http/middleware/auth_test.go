package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

func authRouter(opts AuthOptions, seen *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(opts))
	r.GET("/me", func(c *gin.Context) {
		*seen = UserID(c)
		c.Status(http.StatusNoContent)
	})
	return r
}

func doGet(r http.Handler, path string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate_HeaderMode(t *testing.T) {
	var seen string
	r := authRouter(AuthOptions{}, &seen)

	w := doGet(r, "/me", map[string]string{HeaderUserID: " u1 "})
	if w.Code != http.StatusNoContent || seen != "u1" {
		t.Fatalf("code=%d seen=%q", w.Code, seen)
	}

	w = doGet(r, "/me", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header -> %d; want 401", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["code"] != "unauthorized" {
		t.Fatalf("body = %v", body)
	}
}

func TestAuthenticate_JWT(t *testing.T) {
	const secret = "s3cret"
	future := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	past := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}

	good, err := SignToken(secret, "p1", future)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	expired, _ := SignToken(secret, "p1", past)
	forged, _ := SignToken("other", "p1", future)
	viaClaim, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "p9", RegisteredClaims: future}).SignedString([]byte(secret))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS384, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "p1"}}).SignedString([]byte(secret))

	tests := []struct {
		name   string
		hdr    map[string]string
		code   int
		wantID string
	}{
		{"valid subject", map[string]string{"Authorization": "Bearer " + good}, http.StatusNoContent, "p1"},
		{"lowercase scheme", map[string]string{"Authorization": "bearer " + good}, http.StatusNoContent, "p1"},
		{"userId claim", map[string]string{"Authorization": "Bearer " + viaClaim}, http.StatusNoContent, "p9"},
		{"expired", map[string]string{"Authorization": "Bearer " + expired}, http.StatusUnauthorized, ""},
		{"wrong key", map[string]string{"Authorization": "Bearer " + forged}, http.StatusUnauthorized, ""},
		{"wrong alg", map[string]string{"Authorization": "Bearer " + wrongAlg}, http.StatusUnauthorized, ""},
		{"header ignored", map[string]string{HeaderUserID: "p1"}, http.StatusUnauthorized, ""},
		{"not bearer", map[string]string{"Authorization": "Basic abc"}, http.StatusUnauthorized, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			r := authRouter(AuthOptions{JWTSecret: secret}, &seen)
			w := doGet(r, "/me", tc.hdr)
			if w.Code != tc.code || seen != tc.wantID {
				t.Fatalf("code=%d seen=%q; want %d %q", w.Code, seen, tc.code, tc.wantID)
			}
		})
	}
}

func TestAuthenticate_Issuer(t *testing.T) {
	const secret = "s3cret"
	tok, _ := SignToken(secret, "p1", jwt.RegisteredClaims{Issuer: "someone-else"})
	var seen string
	r := authRouter(AuthOptions{JWTSecret: secret, Issuer: "veil"}, &seen)
	if w := doGet(r, "/me", map[string]string{"Authorization": "Bearer " + tok}); w.Code != http.StatusUnauthorized {
		t.Fatalf("foreign issuer -> %d", w.Code)
	}

	tok, _ = SignToken(secret, "p1", jwt.RegisteredClaims{Issuer: "veil"})
	if w := doGet(r, "/me", map[string]string{"Authorization": "Bearer " + tok}); w.Code != http.StatusNoContent {
		t.Fatalf("own issuer -> %d", w.Code)
	}
}

func TestAuthenticate_EnrichesContextLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(func(c *gin.Context) {
		withRequestLogger(c, zerolog.New(&buf))
		c.Next()
	})
	r.Use(Authenticate(AuthOptions{}))
	r.GET("/x", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("inside")
		c.Status(http.StatusOK)
	})

	doGet(r, "/x", map[string]string{HeaderUserID: "p7"})
	if !strings.Contains(buf.String(), `"user_id":"p7"`) {
		t.Fatalf("log line lacks user_id: %s", buf.String())
	}
}

func TestCronSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newRouter := func(secret string) *gin.Engine {
		r := gin.New()
		r.Use(CronSecret(secret))
		r.POST("/admin", func(c *gin.Context) { c.Status(http.StatusAccepted) })
		return r
	}
	post := func(r http.Handler, hdr map[string]string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		for k, v := range hdr {
			req.Header.Set(k, v)
		}
		r.ServeHTTP(w, req)
		return w.Code
	}

	r := newRouter("cron")
	if got := post(r, map[string]string{HeaderCronSecret: "cron"}); got != http.StatusAccepted {
		t.Fatalf("header secret -> %d", got)
	}
	if got := post(r, map[string]string{"Authorization": "Bearer cron"}); got != http.StatusAccepted {
		t.Fatalf("bearer secret -> %d", got)
	}
	if got := post(r, map[string]string{HeaderCronSecret: "nope"}); got != http.StatusUnauthorized {
		t.Fatalf("wrong secret -> %d", got)
	}
	if got := post(r, nil); got != http.StatusUnauthorized {
		t.Fatalf("no secret -> %d", got)
	}
	if got := post(newRouter(""), map[string]string{HeaderCronSecret: ""}); got != http.StatusUnauthorized {
		t.Fatalf("unconfigured secret -> %d", got)
	}
}

package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func secRouter(opt SecurityOptions, preset map[string]string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		for k, v := range preset {
			c.Header(k, v)
		}
		c.Next()
	})
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	w := doGet(secRouter(SecurityOptions{}, map[string]string{requestIDHeader: "rid"}), "/ok", nil)
	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline missing: %v", h)
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
	if h.Get("Access-Control-Expose-Headers") != requestIDHeader {
		t.Fatalf("expose = %q", h.Get("Access-Control-Expose-Headers"))
	}
}

func TestSecurityHeaders_ExposeAppends(t *testing.T) {
	preset := map[string]string{requestIDHeader: "rid", "Access-Control-Expose-Headers": "ETag"}
	w := doGet(secRouter(SecurityOptions{}, preset), "/ok", nil)
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "ETag, X-Request-ID" {
		t.Fatalf("expose = %q", got)
	}
}

func TestSecurityHeaders_NoStoreAndPolicy(t *testing.T) {
	w := doGet(secRouter(SecurityOptions{NoStore: true, EnablePolicy: true}, nil), "/ok", nil)
	h := w.Header()
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("no-store headers: %v", h)
	}
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers: %v", h)
	}
	if h.Get("Access-Control-Expose-Headers") != "" {
		t.Fatalf("expose set without request id")
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	r := secRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}, nil)
	want := "max-age=" + strconv.Itoa(3600) + "; includeSubDomains; preload"

	if w := doGet(r, "/ok", nil); w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS sent over plain HTTP")
	}
	if w := doGet(r, "/ok", map[string]string{"X-Forwarded-Proto": "HTTPS"}); w.Header().Get("Strict-Transport-Security") != want {
		t.Fatalf("proxied HTTPS HSTS = %q", w.Header().Get("Strict-Transport-Security"))
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.TLS = &tls.ConnectionState{}
	r.ServeHTTP(w, req)
	if w.Header().Get("Strict-Transport-Security") != want {
		t.Fatalf("TLS HSTS = %q", w.Header().Get("Strict-Transport-Security"))
	}

	def := secRouter(SecurityOptions{EnableHSTS: true}, nil)
	w = doGet(def, "/ok", map[string]string{"X-Forwarded-Proto": "https"})
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("default max-age = %q", got)
	}
}

package middleware

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRedactingLogger_ScrubsAndLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/matches/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusForbidden) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	id := "3f2b8c1e-9a7d-4e6f-8b1a-2c3d4e5f6a7b"
	doGet(r, "/matches/"+id+"?email=ada@example.com&phone=212-555-1212&ref="+id, map[string]string{
		"Authorization":  "Bearer secret-token",
		HeaderCronSecret: "cron",
		"X-Api-Key":      "k",
		"X-Trace":        "user " + id,
		requestIDHeader:  "rid-1",
	})
	doGet(r, "/bad", nil)
	doGet(r, "/fail", nil)

	out := buf.String()
	for _, leak := range []string{id, "ada@example.com", "212-555-1212", "secret-token", `"cron"`} {
		if strings.Contains(out, leak) {
			t.Fatalf("log leaked %q: %s", leak, out)
		}
	}

	lines := logLines(t, buf)
	if len(lines) != 3 {
		t.Fatalf("want 3 log lines, got %d", len(lines))
	}
	first := lines[0]
	if first["level"] != "info" || first["path"] != "/matches/:id" || first["request_id"] != "rid-1" {
		t.Fatalf("first line = %v", first)
	}
	headers, _ := first["headers"].(map[string]any)
	for _, h := range []string{"Authorization", "X-Cron-Secret", "X-Api-Key"} {
		if headers[h] != "[REDACTED]" {
			t.Fatalf("header %s = %v", h, headers[h])
		}
	}
	if q, _ := first["query"].(string); !strings.Contains(q, "[REDACTED:email]") || !strings.Contains(q, "[REDACTED:phone]") || !strings.Contains(q, "[REDACTED:id]") {
		t.Fatalf("query = %q", q)
	}
	if lines[1]["level"] != "warn" || lines[2]["level"] != "error" {
		t.Fatalf("levels = %v / %v", lines[1]["level"], lines[2]["level"])
	}
}

func TestRedactingLogger_AttachesContextLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/x", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("from service")
		c.Status(http.StatusOK)
	})
	doGet(r, "/x", map[string]string{requestIDHeader: "rid-ctx"})

	lines := logLines(t, buf)
	if len(lines) != 2 || lines[0]["message"] != "from service" || lines[0]["request_id"] != "rid-ctx" {
		t.Fatalf("lines = %v", lines)
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/veil-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope for every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID for correlating with server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code, see errors.go
	Code string `json:"code" example:"phase_locked"`
	// Human-readable message, safe to display
	Message string `json:"message" example:"chat is closed for this match"`
}

// fail aborts with an ErrorResponse. 5xx responses are logged together with
// whatever errors the handler attached to the context.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().Int("status", status).Str("code", code)
		if len(c.Errors) > 0 {
			ev = ev.Str("cause", c.Errors.String())
		}
		ev.Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router reuse the envelope for NoRoute and NoMethod.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

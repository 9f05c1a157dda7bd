package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SweepRequest is the optional body of POST /admin/sweep.
type SweepRequest struct {
	// YYYY-MM-DD; defaults to the running cycle's date
	Date string `json:"date" example:"2024-01-01"`
}

// RunSweep godoc
// @ID          runSweep
// @Summary     Run the daily pairing
// @Description Pairs unmatched participants for the date in enrollment order. Safe to repeat.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       X-Cron-Secret  header  string                 true   "Shared cron secret"
// @Param       body           body    handlers.SweepRequest  false  "Target date"
// @Success     200  {object}  services.SweepResult
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "sweep_in_progress"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /admin/sweep [post]
func (h *Handlers) RunSweep(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = h.Matches.CycleDate(h.now())
	}
	res, err := h.Sweep.RunDailyMatch(c.Request.Context(), date)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// RunReconcile godoc
// @ID          runReconcile
// @Summary     Apply lagging transitions
// @Description Moves expired chats to VOTE, wipes lapsed votes and purges stale idempotency keys.
// @Tags        Admin
// @Produce     json
// @Param       X-Cron-Secret  header  string  true  "Shared cron secret"
// @Success     200  {object}  services.ReconcileResult
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /admin/reconcile [post]
func (h *Handlers) RunReconcile(c *gin.Context) {
	res, err := h.Reconcile.ReconcileExpired(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

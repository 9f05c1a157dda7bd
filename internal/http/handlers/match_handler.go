package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// EnrollRequest is the body of POST /participants/me.
type EnrollRequest struct {
	// Disclosed to the partner only on a mutual reveal
	DisplayName string `json:"display_name" example:"Ada"`
}

// GetPhase godoc
// @ID          getPhase
// @Summary     Global cycle phase
// @Description WAITING, CHAT or VOTE for the current instant, with the next transition and today's window.
// @Tags        Cycle
// @Produce     json
// @Success     200  {object}  cycle.State
// @Router      /phase [get]
func (h *Handlers) GetPhase(c *gin.Context) {
	ok(c, http.StatusOK, h.Matches.Phase())
}

// CurrentMatch godoc
// @ID          currentMatch
// @Summary     The caller's match for the running cycle
// @Description Nicknames only until a mutual reveal. match is omitted when the caller was not paired.
// @Tags        Matches
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  services.CurrentView
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /matches/current [get]
func (h *Handlers) CurrentMatch(c *gin.Context) {
	view, err := h.Matches.Current(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// Enroll godoc
// @ID          enroll
// @Summary     Join the daily pool
// @Description Idempotent. Re-enrolling updates the display name and keeps the original enrollment order.
// @Tags        Participants
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.EnrollRequest  true  "Profile"
// @Success     200  {object}  domain.Participant
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /participants/me [post]
func (h *Handlers) Enroll(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.Participants.Enroll(c.Request.Context(), callerID(c), req.DisplayName)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// Me godoc
// @ID          me
// @Summary     The caller's enrollment
// @Tags        Participants
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.Participant
// @Failure     404  {object}  handlers.ErrorResponse  "not_enrolled"
// @Router      /participants/me [get]
func (h *Handlers) Me(c *gin.Context) {
	p, err := h.Participants.Get(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CastVoteRequest is the body of POST /matches/{id}/votes. Vote is a pointer
// so a missing field is rejected rather than read as false.
type CastVoteRequest struct {
	Vote *bool `json:"vote" binding:"required" example:"true"`
}

// CastVote godoc
// @ID          castVote
// @Summary     Cast the final vote
// @Description Records the caller's one vote. When the second vote lands the match resolves:
// @Description REVEALED if both voted yes, otherwise WIPED and the transcript is deleted.
// @Tags        Votes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                    true  "Match ID"  format(uuid)
// @Param       body  body  handlers.CastVoteRequest  true  "Vote"
// @Success     201  {object}  services.VoteResult
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse  "not_participant or too_early"
// @Failure     404  {object}  handlers.ErrorResponse  "Match not found"
// @Failure     409  {object}  handlers.ErrorResponse  "duplicate_vote or already_resolved"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /matches/{id}/votes [post]
func (h *Handlers) CastVote(c *gin.Context) {
	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Vote == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "vote must be true or false")
		return
	}
	res, err := h.Votes.CastVote(c.Request.Context(), c.Param("id"), callerID(c), *req.Vote)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, res)
}

// VoteStatus godoc
// @ID          voteStatus
// @Summary     Vote status
// @Description The caller's own vote and whether the partner has voted. The partner's value is never returned.
// @Tags        Votes
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Match ID"  format(uuid)
// @Success     200  {object}  services.VoteStatus
// @Failure     403  {object}  handlers.ErrorResponse  "not_participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Match not found"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /matches/{id}/votes [get]
func (h *Handlers) VoteStatus(c *gin.Context) {
	st, err := h.Votes.Status(c.Request.Context(), c.Param("id"), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

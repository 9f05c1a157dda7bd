package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/veil-backend/internal/services"
)

// Error codes returned in ErrorResponse.Code. Clients branch on these, so
// they never change once published.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	ErrCodeContentInvalid  = "content_invalid"
	ErrCodeNotEnrolled     = "not_enrolled"
	ErrCodeNotParticipant  = "not_participant"
	ErrCodePhaseLocked     = "phase_locked"
	ErrCodeChatExpired     = "chat_expired"
	ErrCodeTooEarly        = "too_early"
	ErrCodeAlreadyResolved = "already_resolved"
	ErrCodeDuplicateVote   = "duplicate_vote"
	ErrCodeSweepInProgress = "sweep_in_progress"
)

type errMapping struct {
	target error
	status int
	code   string
	msg    string
}

// Order matters: the content errors wrap ErrContentInvalid, which must come
// after them so the more specific message wins.
var errTable = []errMapping{
	{services.ErrEmptyContent, http.StatusBadRequest, ErrCodeContentInvalid, "content must not be empty"},
	{services.ErrContentTooLong, http.StatusBadRequest, ErrCodeContentInvalid, "content is too long"},
	{services.ErrContentInvalid, http.StatusBadRequest, ErrCodeContentInvalid, "content is invalid"},
	{services.ErrSweepClosed, http.StatusBadRequest, ErrCodeBadRequest, "chat window for that date has closed"},
	{services.ErrInvalidInput, http.StatusBadRequest, ErrCodeBadRequest, "invalid input"},
	{services.ErrMatchNotFound, http.StatusNotFound, ErrCodeNotFound, "match not found"},
	{services.ErrNotEnrolled, http.StatusNotFound, ErrCodeNotEnrolled, "participant is not enrolled"},
	{services.ErrNotParticipant, http.StatusForbidden, ErrCodeNotParticipant, "not a participant of this match"},
	{services.ErrPhaseLocked, http.StatusForbidden, ErrCodePhaseLocked, "chat is closed for this match"},
	{services.ErrChatExpired, http.StatusForbidden, ErrCodeChatExpired, "chat window has ended"},
	{services.ErrTooEarly, http.StatusForbidden, ErrCodeTooEarly, "voting has not opened yet"},
	{services.ErrAlreadyResolved, http.StatusConflict, ErrCodeAlreadyResolved, "match is already resolved"},
	{services.ErrDuplicateVote, http.StatusConflict, ErrCodeDuplicateVote, "vote already cast"},
	{services.ErrSweepInProgress, http.StatusConflict, ErrCodeSweepInProgress, "a sweep for this date is already running"},
}

// writeError maps a service error onto the response envelope. Anything not
// in the table, storage failures included, is a 500 with a generic message;
// the detail goes to the log only.
func writeError(c *gin.Context, err error) {
	for _, m := range errTable {
		if errors.Is(err, m.target) {
			fail(c, m.status, m.code, m.msg)
			return
		}
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
}

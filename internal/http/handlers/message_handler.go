package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/veil-backend/internal/domain"
	"github.com/tbourn/veil-backend/internal/http/middleware"
	"github.com/tbourn/veil-backend/internal/services"
)

// PostMessageRequest is the body of POST /matches/{id}/messages.
type PostMessageRequest struct {
	// Normalized server-side; 1..MAX_MESSAGE_RUNES runes after trimming
	Content string `json:"content" example:"so what do you do for fun?"`
}

// PostMessageResponse wraps the stored message.
type PostMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse is one page of the transcript, oldest first.
type ListMessagesResponse struct {
	Messages   []services.MessageView `json:"messages"`
	Pagination Pagination             `json:"pagination"`
}

// HeaderReplayed marks a response served from an earlier request with the
// same Idempotency-Key.
const HeaderReplayed = "Idempotency-Replayed"

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a chat message
// @Description Stores a message while the match is in CHAT and its chat window is open.
// @Description A repeated Idempotency-Key returns the originally stored message with Idempotency-Replayed: true.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                        false  "Key for safe retries"
// @Param       id               path    string                        true   "Match ID"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest   true   "Message"
// @Success     201  {object}  handlers.PostMessageResponse
// @Success     200  {object}  handlers.PostMessageResponse  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "content_invalid"
// @Failure     403  {object}  handlers.ErrorResponse  "not_participant, phase_locked or chat_expired"
// @Failure     404  {object}  handlers.ErrorResponse  "Match not found"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /matches/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	matchID, uid := c.Param("id"), callerID(c)

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	key, hasKey := middleware.GetIdempotencyKey(c)
	// The validator already looked the key up; only known keys need the
	// stored message.
	if hasKey && middleware.IsReplay(c) {
		prev, found, err := h.Messages.Replay(ctx, uid, matchID, key)
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency replay lookup failed")
		}
		if found {
			c.Header(HeaderReplayed, "true")
			ok(c, http.StatusOK, PostMessageResponse{Message: prev})
			return
		}
	}

	m, err := h.Messages.Submit(ctx, matchID, uid, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	if hasKey {
		if err := h.Messages.Remember(ctx, uid, matchID, key, m.ID, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("storing idempotency key failed")
		}
	}
	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List the match transcript
// @Description Messages oldest first, each tagged with is_me and the sender's nickname.
// @Description Supports If-None-Match against the weak ETag. A wiped match lists nothing.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id         path   string  true   "Match ID"  format(uuid)
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(200) default(50)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  "Not modified"
// @Failure     403  {object}  handlers.ErrorResponse  "not_participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Match not found"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /matches/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	matchID, uid := c.Param("id"), callerID(c)

	count, last, err := h.Messages.Stats(ctx, matchID, uid)
	if err != nil {
		writeError(c, err)
		return
	}
	var ts int64
	if last != nil {
		ts = last.UnixMilli()
	}
	etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, matchID, count, ts)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	page, pageSize := pageParams(c)
	items, total, err := h.Messages.ListPage(ctx, matchID, uid, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: paginate(page, pageSize, total),
	})
}

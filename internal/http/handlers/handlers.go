// Package handlers implements the public HTTP API: phase, enrollment, the
// caller's match, messages, votes and the cron-driven admin endpoints.
//
// Handlers stay thin. They bind input, read the caller from the context set
// by middleware.Authenticate, call a service and map its errors through
// writeError. No handler touches the database directly.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/veil-backend/internal/clock"
	"github.com/tbourn/veil-backend/internal/cycle"
	"github.com/tbourn/veil-backend/internal/domain"
	"github.com/tbourn/veil-backend/internal/http/middleware"
	"github.com/tbourn/veil-backend/internal/services"
	"github.com/tbourn/veil-backend/internal/utils"
)

// MatchService exposes the cycle clock and the caller's match.
type MatchService interface {
	Phase() cycle.State
	CycleDate(now time.Time) string
	Current(ctx context.Context, callerID string) (services.CurrentView, error)
}

// ParticipantService manages pool membership.
type ParticipantService interface {
	Enroll(ctx context.Context, id, displayName string) (*domain.Participant, error)
	Get(ctx context.Context, id string) (*domain.Participant, error)
}

// MessageService is the message gate plus the idempotency record it owns.
type MessageService interface {
	Submit(ctx context.Context, matchID, senderID, content string) (*domain.Message, error)
	ListPage(ctx context.Context, matchID, callerID string, page, pageSize int) ([]services.MessageView, int64, error)
	Stats(ctx context.Context, matchID, callerID string) (int64, *time.Time, error)
	Replay(ctx context.Context, userID, matchID, key string) (*domain.Message, bool, error)
	Remember(ctx context.Context, userID, matchID, key, messageID string, status int) error
}

// VoteService records votes and reports aggregate vote state.
type VoteService interface {
	CastVote(ctx context.Context, matchID, voterID string, value bool) (services.VoteResult, error)
	Status(ctx context.Context, matchID, callerID string) (services.VoteStatus, error)
}

// SweepService runs the daily pairing.
type SweepService interface {
	RunDailyMatch(ctx context.Context, date string) (services.SweepResult, error)
}

// ReconcileService applies lagging transitions eagerly.
type ReconcileService interface {
	ReconcileExpired(ctx context.Context) (services.ReconcileResult, error)
}

// Handlers groups the endpoints. Services left nil are not routed.
type Handlers struct {
	Matches      MatchService
	Participants ParticipantService
	Messages     MessageService
	Votes        VoteService
	Sweep        SweepService
	Reconcile    ReconcileService
	Clock        clock.Clock
}

func (h *Handlers) now() time.Time { return clock.Or(h.Clock).Now().UTC() }

// callerID is the participant resolved by middleware.Authenticate.
func callerID(c *gin.Context) string { return middleware.UserID(c) }

// Pagination carries paging metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// pageParams reads page and page_size, falling back to defaults and capping
// the size.
func pageParams(c *gin.Context) (page, pageSize int) {
	page = utils.AtoiDefault(c.Query("page"), 1)
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	return utils.ClampPage(page, pageSize, maxPageSize)
}

func paginate(page, pageSize int, total int64) Pagination {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// Package services – MessageService
//
// This file implements MessageService, the chat-window gate. It validates
// and normalizes content, enforces the CHAT phase against the match deadline,
// pages transcripts for either slot and keeps the idempotency records that
// let clients retry a send.
//
// Observability: Submit and ListPage are traced with match and caller ids.

package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/veil-backend/internal/broker"
	"github.com/tbourn/veil-backend/internal/domain"
	"github.com/tbourn/veil-backend/internal/observability"
	"github.com/tbourn/veil-backend/internal/repo"
)

// DefaultMaxMessageRunes caps message length when MessageService.MaxRunes is unset.
const DefaultMaxMessageRunes = 1000

// DefaultIdempotencyTTL is how long a stored Idempotency-Key can be replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

var blankRuns = regexp.MustCompile(`\n{3,}`)

// MessageService is the gate for chat messages. A message is stored only
// while the match is in CHAT and its chat window is open.
type MessageService struct {
	Deps

	// MaxRunes bounds content length after normalization.
	MaxRunes int
	// IdempotencyTTL bounds replays of a submitted message.
	IdempotencyTTL time.Duration
}

// MessageView is a message as seen by one of the participants.
type MessageView struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	IsMe       bool      `json:"is_me"`
	SenderNick string    `json:"sender_nick"`
}

// NormalizeContent applies NFC, converts CRLF to LF, collapses runs of blank
// lines and trims surrounding whitespace.
func NormalizeContent(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func (s *MessageService) maxRunes() int {
	if s.MaxRunes > 0 {
		return s.MaxRunes
	}
	return DefaultMaxMessageRunes
}

func (s *MessageService) validate(content string) (string, error) {
	content = NormalizeContent(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.maxRunes() {
		return "", ErrContentTooLong
	}
	return content, nil
}

// Submit stores a message from senderID. Checks run in this order:
//
//	ErrMatchNotFound, ErrNotParticipant, ErrPhaseLocked,
//	ErrChatExpired (the match is moved to VOTE and nothing is stored),
//	ErrContentInvalid.
//
// The insert shares a transaction with a conditional touch of the match, so a
// message can never land after the chat window has been closed.
func (s *MessageService) Submit(ctx context.Context, matchID, senderID, content string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("match.id", matchID),
			attribute.String("participant.id", senderID),
		),
	)
	defer span.End()

	now := s.now()
	var (
		msg     *domain.Message
		nick    string
		fx      effects
		guarded error
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, moved, applied, err := lockAndReconcile(ctx, tx, matchID, now)
		if err != nil {
			return err
		}
		fx = applied
		if !m.HasParticipant(senderID) {
			return ErrNotParticipant
		}

		switch {
		case moved.From != domain.PhaseChat:
			guarded = ErrPhaseLocked
			return nil
		case m.Phase != domain.PhaseChat:
			// The lazy flip is kept; the message is not.
			guarded = ErrChatExpired
			return nil
		}

		clean, err := s.validate(content)
		if err != nil {
			guarded = err
			return nil
		}

		open, err := repo.TouchOpenChat(ctx, tx, matchID, now)
		if err != nil {
			return storageErr("touch match", err)
		}
		if !open {
			guarded = ErrPhaseLocked
			return nil
		}
		msg, err = repo.CreateMessage(ctx, tx, matchID, senderID, clean, now)
		if err != nil {
			return storageErr("create message", err)
		}
		nick = m.NickFor(senderID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, matchID, fx, now)
	if guarded != nil {
		return nil, guarded
	}

	observability.MessagesStored.Inc()
	s.publish(ctx, broker.Event{
		Type:       broker.EventMessageCreated,
		MatchID:    matchID,
		At:         msg.CreatedAt,
		MessageID:  msg.ID,
		SenderNick: nick,
	})
	return msg, nil
}

// List returns the match's messages in creation order, annotated for callerID.
// The match is reconciled first, so a list taken after a wipe is empty.
func (s *MessageService) List(ctx context.Context, matchID, callerID string) ([]MessageView, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("match.id", matchID),
			attribute.String("participant.id", callerID),
		),
	)
	defer span.End()

	m, err := s.authorized(ctx, matchID, callerID)
	if err != nil {
		return nil, err
	}
	items, err := repo.ListMessages(ctx, s.DB, matchID, 0)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	return views(m, callerID, items), nil
}

// ListPage returns one page of List and the total message count.
func (s *MessageService) ListPage(ctx context.Context, matchID, callerID string, page, pageSize int) ([]MessageView, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("match.id", matchID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	m, err := s.authorized(ctx, matchID, callerID)
	if err != nil {
		return nil, 0, err
	}
	total, err := repo.CountMessages(ctx, s.DB, matchID)
	if err != nil {
		return nil, 0, storageErr("count messages", err)
	}
	if total == 0 {
		return []MessageView{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, matchID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, storageErr("list messages", err)
	}
	return views(m, callerID, items), total, nil
}

// Stats returns the message count and newest timestamp, used for ETags.
func (s *MessageService) Stats(ctx context.Context, matchID, callerID string) (int64, *time.Time, error) {
	if _, err := s.authorized(ctx, matchID, callerID); err != nil {
		return 0, nil, err
	}
	count, last, err := repo.MessagesStats(ctx, s.DB, matchID)
	if err != nil {
		return 0, nil, storageErr("message stats", err)
	}
	return count, last, nil
}

// Replay returns the message a previous request with the same
// Idempotency-Key produced, or ok=false when there is none.
func (s *MessageService) Replay(ctx context.Context, userID, matchID, key string) (*domain.Message, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, matchID, key, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("get idempotency", err)
	}
	msg, err := repo.GetMessage(ctx, s.DB, rec.MessageID)
	if errors.Is(err, repo.ErrNotFound) {
		// Wiped since; the key no longer replays.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("get message", err)
	}
	return msg, true, nil
}

// HasReplay reports whether key has a stored result. It matches the
// middleware.IdempotencyLookup signature.
func (s *MessageService) HasReplay(ctx context.Context, userID, matchID, key string, now time.Time) (bool, error) {
	_, err := repo.GetIdempotency(ctx, s.DB, userID, matchID, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Remember records that key produced messageID. A concurrent duplicate is
// not an error.
func (s *MessageService) Remember(ctx context.Context, userID, matchID, key, messageID string, status int) error {
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, matchID, key, messageID, status, s.now(), ttl)
	if err != nil && !errors.Is(err, repo.ErrDuplicate) {
		return storageErr("create idempotency", err)
	}
	return nil
}

// authorized loads and reconciles the match and checks the caller holds a slot.
func (s *MessageService) authorized(ctx context.Context, matchID, callerID string) (*domain.Match, error) {
	m, err := s.reconcileRead(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(callerID) {
		return nil, ErrNotParticipant
	}
	return m, nil
}

func views(m *domain.Match, callerID string, items []domain.Message) []MessageView {
	out := make([]MessageView, 0, len(items))
	for _, it := range items {
		out = append(out, MessageView{
			ID:         it.ID,
			Content:    it.Content,
			CreatedAt:  it.CreatedAt,
			IsMe:       it.SenderID == callerID,
			SenderNick: m.NickFor(it.SenderID),
		})
	}
	return out
}

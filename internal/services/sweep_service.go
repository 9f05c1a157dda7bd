// Package services – SweepService
//
// This file implements the daily sweep. It lists participants without a slot
// for the date, pairs them in enrollment order and creates one CHAT match per
// pair. An optional broker.Locker keeps overlapping sweeps apart; the
// (participant, date) unique index is what guarantees one match per day.
//
// Observability: RunDailyMatch is traced and reports created, unpaired and
// skipped counts to Prometheus and the request logger.

package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/veil-backend/internal/broker"
	"github.com/tbourn/veil-backend/internal/cycle"
	"github.com/tbourn/veil-backend/internal/domain"
	"github.com/tbourn/veil-backend/internal/observability"
	"github.com/tbourn/veil-backend/internal/repo"
)

// DefaultSweepLockTTL bounds how long a sweep holds its lock.
const DefaultSweepLockTTL = 10 * time.Minute

// SweepService pairs the day's unmatched participants.
type SweepService struct {
	Deps

	Calc cycle.Calculator
	// Locker, when set, keeps two sweeps for the same date from overlapping.
	// Correctness does not depend on it: the (participant, date) unique index
	// rejects a second slot either way.
	Locker  broker.Locker
	LockTTL time.Duration
}

// SweepResult summarizes one RunDailyMatch call.
type SweepResult struct {
	Date           string `json:"date"`
	MatchesCreated int    `json:"matches_created"`
	UnpairedCount  int    `json:"unpaired_count"`
	// Skipped counts pairs dropped because a concurrent sweep slotted one of
	// the participants first.
	Skipped int `json:"skipped"`
}

// RunDailyMatch pairs every enrolled participant without a match on date and
// creates one match per pair, each in its own transaction. Chat and vote
// deadlines come from the date's drop instant.
//
// Re-running for the same date only pairs participants still unmatched at
// that point, so nobody ever gets a second match for a date. A date whose
// chat window has closed is refused with ErrSweepClosed.
func (s *SweepService) RunDailyMatch(ctx context.Context, date string) (SweepResult, error) {
	tr := otel.Tracer("services/SweepService")
	ctx, span := tr.Start(ctx, "RunDailyMatch",
		trace.WithAttributes(attribute.String("sweep.date", date)),
	)
	defer span.End()

	res := SweepResult{Date: date}
	w, err := s.Calc.Window(date)
	if err != nil {
		return res, ErrInvalidInput
	}
	if !s.now().Before(w.ChatExpiry) {
		return res, ErrSweepClosed
	}

	if s.Locker != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = DefaultSweepLockTTL
		}
		unlock, ok, err := s.Locker.TryLock(ctx, "sweep:"+date, ttl)
		if err != nil {
			return res, storageErr("acquire sweep lock", err)
		}
		if !ok {
			return res, ErrSweepInProgress
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("date", date).Msg("release sweep lock")
			}
		}()
	}

	pool, err := repo.ListUnmatchedParticipants(ctx, s.DB, date)
	if err != nil {
		return res, storageErr("list unmatched participants", err)
	}
	ids := make([]string, 0, len(pool))
	for _, p := range pool {
		ids = append(ids, p.ID)
	}
	paired := Pair(ids, date)
	res.UnpairedCount = len(paired.Unpaired)

	for _, p := range paired.Pairs {
		now := s.now()
		m := &domain.Match{
			ID:           uuid.NewString(),
			SlotAID:      p.A,
			SlotBID:      p.B,
			SlotANick:    p.NickA,
			SlotBNick:    p.NickB,
			Date:         date,
			Phase:        domain.PhaseChat,
			ExpiresAt:    w.ChatExpiry,
			VoteDeadline: w.VoteExpiry,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err := repo.CreateMatch(ctx, s.DB, m)
		if errors.Is(err, repo.ErrDuplicate) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, storageErr("create match", err)
		}
		res.MatchesCreated++
		s.publish(ctx, broker.Event{
			Type:    broker.EventMatchCreated,
			MatchID: m.ID,
			At:      now,
			Phase:   string(domain.PhaseChat),
		})
	}

	observability.MatchesCreated.Add(float64(res.MatchesCreated))
	observability.SweepUnpaired.Add(float64(res.UnpairedCount))
	observability.SweepSkipped.Add(float64(res.Skipped))

	zerolog.Ctx(ctx).Info().
		Str("date", date).
		Int("matches_created", res.MatchesCreated).
		Int("unpaired", res.UnpairedCount).
		Int("skipped", res.Skipped).
		Msg("daily sweep finished")

	span.SetAttributes(
		attribute.Int("sweep.matches_created", res.MatchesCreated),
		attribute.Int("sweep.unpaired", res.UnpairedCount),
	)
	return res, nil
}

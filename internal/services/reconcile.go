// Package services – ReconcileService
//
// This file holds the pure phase reconciler and the helpers every service
// uses to persist its result under the match lock. ReconcileService applies
// lagging transitions in batches and purges expired idempotency records.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/veil-backend/internal/broker"
	"github.com/tbourn/veil-backend/internal/clock"
	"github.com/tbourn/veil-backend/internal/domain"
	"github.com/tbourn/veil-backend/internal/observability"
	"github.com/tbourn/veil-backend/internal/repo"
)

// Deps are the collaborators shared by the lifecycle services.
type Deps struct {
	DB        *gorm.DB
	Clock     clock.Clock
	Publisher broker.Publisher
}

func (d Deps) now() time.Time { return clock.Or(d.Clock).Now().UTC() }

// Transition describes how Reconcile moved a match. From == To means nothing
// changed. Outcome is set only when the match was resolved.
type Transition struct {
	From    domain.Phase
	To      domain.Phase
	Outcome *domain.Outcome
}

// Changed reports whether the phase moved.
func (t Transition) Changed() bool { return t.From != t.To }

// Reconcile brings a match's phase in line with the clock:
//
//	CHAT and now > ExpiresAt       -> VOTE
//	VOTE and now >= VoteDeadline   -> RESOLVED / WIPED
//
// Both steps may apply in one call for a match nobody touched for a whole
// cycle. Reconcile is pure; the caller persists the result.
func Reconcile(m domain.Match, now time.Time) (domain.Match, Transition) {
	now = now.UTC()
	tr := Transition{From: m.Phase, To: m.Phase}

	if m.Phase == domain.PhaseChat && now.After(m.ExpiresAt) {
		m.Phase = domain.PhaseVote
	}
	if m.Phase == domain.PhaseVote && !now.Before(m.VoteDeadline) {
		outcome := domain.OutcomeWiped
		resolvedAt := now
		m.Phase = domain.PhaseResolved
		m.Outcome = &outcome
		m.ResolvedAt = &resolvedAt
		tr.Outcome = &outcome
	}
	tr.To = m.Phase
	return m, tr
}

// effects records what a transaction actually wrote, so the caller can emit
// metrics and events once it has committed.
type effects struct {
	movedToVote bool
	resolved    *domain.Outcome
	wiped       int64
}

func (fx effects) empty() bool { return !fx.movedToVote && fx.resolved == nil }

func (fx *effects) merge(other effects) {
	fx.movedToVote = fx.movedToVote || other.movedToVote
	if other.resolved != nil {
		fx.resolved = other.resolved
		fx.wiped += other.wiped
	}
}

// resolveTx moves a VOTE match to RESOLVED and, for WIPED, deletes its
// messages. The conditional update must hit exactly one row; a miss means the
// match left VOTE under us and nothing else is written.
func resolveTx(ctx context.Context, tx *gorm.DB, matchID string, outcome domain.Outcome, now time.Time) (effects, bool, error) {
	var fx effects
	ok, err := repo.ResolveMatch(ctx, tx, matchID, outcome, now)
	if err != nil {
		return fx, false, storageErr("resolve match", err)
	}
	if !ok {
		return fx, false, nil
	}
	fx.resolved = &outcome
	if outcome == domain.OutcomeWiped {
		n, err := repo.DeleteMessagesForMatch(ctx, tx, matchID)
		if err != nil {
			return fx, false, storageErr("delete messages", err)
		}
		fx.wiped = n
	}
	return fx, true, nil
}

// persistTransition writes tr for matchID inside tx.
func persistTransition(ctx context.Context, tx *gorm.DB, matchID string, tr Transition, now time.Time) (effects, error) {
	var fx effects
	if !tr.Changed() {
		return fx, nil
	}
	if tr.From == domain.PhaseChat {
		ok, err := repo.MoveToVote(ctx, tx, matchID, now)
		if err != nil {
			return fx, storageErr("move to vote", err)
		}
		fx.movedToVote = ok
	}
	if tr.To == domain.PhaseResolved && tr.Outcome != nil {
		res, _, err := resolveTx(ctx, tx, matchID, *tr.Outcome, now)
		if err != nil {
			return fx, err
		}
		fx.merge(res)
	}
	return fx, nil
}

// lockAndReconcile is the opening move of every match-touching write: take
// the match row lock, load the match, and persist whatever transition the
// clock calls for. The returned match reflects the stored state; tr.From is
// the phase it had before.
func lockAndReconcile(ctx context.Context, tx *gorm.DB, matchID string, now time.Time) (*domain.Match, Transition, effects, error) {
	var tr Transition
	if err := repo.LockMatch(ctx, tx, matchID, now); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, tr, effects{}, ErrMatchNotFound
		}
		return nil, tr, effects{}, storageErr("lock match", err)
	}
	m, err := repo.GetMatch(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, tr, effects{}, ErrMatchNotFound
		}
		return nil, tr, effects{}, storageErr("get match", err)
	}

	next, tr := Reconcile(*m, now)
	fx, err := persistTransition(ctx, tx, m.ID, tr, now)
	if err != nil {
		return nil, tr, effects{}, err
	}
	if tr.Changed() && fx.empty() {
		// Another writer moved it first; trust the store.
		if m, err = repo.GetMatch(ctx, tx, matchID); err != nil {
			return nil, tr, effects{}, storageErr("reload match", err)
		}
		return m, tr, fx, nil
	}
	return &next, tr, fx, nil
}

// announce runs after commit: it counts the persisted transitions, logs them
// and publishes lifecycle events. Publish failures are logged only.
func (d Deps) announce(ctx context.Context, matchID string, fx effects, now time.Time) {
	if fx.empty() {
		return
	}
	lg := zerolog.Ctx(ctx)

	if fx.movedToVote {
		observability.RecordTransition(string(domain.PhaseChat), string(domain.PhaseVote))
		lg.Info().Str("match_id", matchID).Msg("match moved to vote")
		d.publish(ctx, broker.Event{
			Type:    broker.EventPhaseChanged,
			MatchID: matchID,
			At:      now,
			Phase:   string(domain.PhaseVote),
		})
	}
	if fx.resolved != nil {
		outcome := string(*fx.resolved)
		observability.RecordTransition(string(domain.PhaseVote), string(domain.PhaseResolved))
		observability.RecordResolution(outcome, fx.wiped)
		lg.Info().
			Str("match_id", matchID).
			Str("outcome", outcome).
			Int64("messages_wiped", fx.wiped).
			Msg("match resolved")
		d.publish(ctx, broker.Event{
			Type:    broker.EventMatchResolved,
			MatchID: matchID,
			At:      now,
			Phase:   string(domain.PhaseResolved),
			Outcome: outcome,
		})
	}
}

func (d Deps) publish(ctx context.Context, ev broker.Event) {
	if d.Publisher == nil {
		return
	}
	if err := d.Publisher.Publish(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("event", string(ev.Type)).
			Str("match_id", ev.MatchID).
			Msg("publish failed")
	}
}

// reconcileBatch bounds how many lagging matches one pass loads.
const reconcileBatch = 100

// ReconcileService applies pending transitions eagerly. Nothing depends on it
// for correctness; every operation reconciles the match it touches.
type ReconcileService struct {
	Deps
}

// ReconcileResult summarizes one ReconcileExpired run.
type ReconcileResult struct {
	MovedToVote int   `json:"moved_to_vote"`
	Resolved    int   `json:"resolved"`
	Wiped       int64 `json:"messages_wiped"`
	PurgedKeys  int64 `json:"purged_idempotency_keys"`
}

// ReconcileExpired moves every lagging match forward and purges expired
// idempotency records. Running it twice in a row is a no-op the second time.
func (s *ReconcileService) ReconcileExpired(ctx context.Context) (ReconcileResult, error) {
	tr := otel.Tracer("services/ReconcileService")
	ctx, span := tr.Start(ctx, "ReconcileExpired")
	defer span.End()

	var res ReconcileResult
	now := s.now()

	for {
		lagging, err := repo.ListLaggingMatches(ctx, s.DB, now, reconcileBatch)
		if err != nil {
			return res, storageErr("list lagging matches", err)
		}
		if len(lagging) == 0 {
			break
		}

		progressed := false
		for _, m := range lagging {
			var fx effects
			err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var err error
				_, _, fx, err = lockAndReconcile(ctx, tx, m.ID, now)
				return err
			})
			if errors.Is(err, ErrMatchNotFound) {
				continue
			}
			if err != nil {
				return res, err
			}
			if !fx.empty() {
				progressed = true
			}
			if fx.movedToVote {
				res.MovedToVote++
			}
			if fx.resolved != nil {
				res.Resolved++
				res.Wiped += fx.wiped
			}
			s.announce(ctx, m.ID, fx, now)
		}
		if !progressed || len(lagging) < reconcileBatch {
			break
		}
	}

	purged, err := repo.PurgeExpiredIdempotency(ctx, s.DB, now)
	if err != nil {
		return res, storageErr("purge idempotency", err)
	}
	res.PurgedKeys = purged

	span.SetAttributes(
		attribute.Int("matches.moved_to_vote", res.MovedToVote),
		attribute.Int("matches.resolved", res.Resolved),
	)
	return res, nil
}

// reconcileRead loads a match without locking and, only if the clock says it
// is behind, re-runs the load under the lock to persist the transition.
func (d Deps) reconcileRead(ctx context.Context, matchID string) (*domain.Match, error) {
	now := d.now()
	m, err := repo.GetMatch(ctx, d.DB, matchID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, storageErr("get match", err)
	}
	if _, tr := Reconcile(*m, now); !tr.Changed() {
		return m, nil
	}

	var fx effects
	err = d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		m, _, fx, err = lockAndReconcile(ctx, tx, matchID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	d.announce(ctx, matchID, fx, now)
	return m, nil
}

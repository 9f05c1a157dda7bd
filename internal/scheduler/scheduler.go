// Package scheduler runs the daily sweep at each drop and the reconciler on a
// fixed interval inside the server process.
//
// It is optional. Every sweep is safe to repeat and every match reconciles
// itself on access, so an external cron hitting the admin endpoints works
// just as well, and running several schedulers side by side is harmless.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/veil-backend/internal/clock"
	"github.com/tbourn/veil-backend/internal/cycle"
	"github.com/tbourn/veil-backend/internal/services"
)

// DefaultInterval is the reconcile period when Interval is unset.
const DefaultInterval = 5 * time.Minute

// Sweeper runs the daily pairing for a date.
type Sweeper interface {
	RunDailyMatch(ctx context.Context, date string) (services.SweepResult, error)
}

// Reconciler applies lagging phase transitions.
type Reconciler interface {
	ReconcileExpired(ctx context.Context) (services.ReconcileResult, error)
}

// Scheduler drives Sweeper and Reconciler from the cycle calendar.
type Scheduler struct {
	Sweep     Sweeper
	Reconcile Reconciler
	Calc      cycle.Calculator
	Clock     clock.Clock
	Interval  time.Duration

	// After defaults to time.After; tests replace it to drive a manual clock.
	After func(time.Duration) <-chan time.Time
}

// Run blocks until ctx is cancelled. On start it catches up on today's sweep
// if the drop has already passed, then waits for whichever comes first: the
// next drop or the next reconcile tick.
func (s *Scheduler) Run(ctx context.Context) error {
	clk := clock.Or(s.Clock)
	after := s.After
	if after == nil {
		after = time.After
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	now := clk.Now().UTC()
	if !now.Before(s.Calc.DropTime(now)) {
		s.sweep(ctx, cycle.Date(now))
	}
	s.reconcile(ctx)

	nextDrop := s.Calc.NextDrop(now)
	nextTick := now.Add(interval)
	zerolog.Ctx(ctx).Info().
		Time("next_drop", nextDrop).
		Dur("reconcile_interval", interval).
		Msg("scheduler started")

	for {
		now = clk.Now().UTC()
		wait := nextTick.Sub(now)
		if d := nextDrop.Sub(now); d < wait {
			wait = d
		}
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			zerolog.Ctx(ctx).Info().Msg("scheduler stopped")
			return nil
		case <-after(wait):
		}

		now = clk.Now().UTC()
		if !now.Before(nextDrop) {
			s.sweep(ctx, cycle.Date(nextDrop))
			nextDrop = s.Calc.NextDrop(now)
		}
		if !now.Before(nextTick) {
			s.reconcile(ctx)
			nextTick = now.Add(interval)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context, date string) {
	if s.Sweep == nil {
		return
	}
	res, err := s.Sweep.RunDailyMatch(ctx, date)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("date", date).Msg("scheduled sweep failed")
		return
	}
	zerolog.Ctx(ctx).Info().
		Str("date", res.Date).
		Int("matches_created", res.MatchesCreated).
		Int("unpaired", res.UnpairedCount).
		Msg("scheduled sweep")
}

func (s *Scheduler) reconcile(ctx context.Context) {
	if s.Reconcile == nil {
		return
	}
	res, err := s.Reconcile.ReconcileExpired(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("scheduled reconcile failed")
		return
	}
	if res.MovedToVote > 0 || res.Resolved > 0 {
		zerolog.Ctx(ctx).Info().
			Int("moved_to_vote", res.MovedToVote).
			Int("resolved", res.Resolved).
			Msg("scheduled reconcile")
	}
}

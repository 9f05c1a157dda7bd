// Package services – VoteService
//
// This file implements VoteService, which records the final reveal vote of
// each slot and resolves the match once both are in. Casting runs behind the
// match row lock inside one transaction, so a second concurrent voter always
// sees the first vote and only one caller resolves. A WIPED outcome deletes
// the transcript in that same transaction.
//
// Observability: CastVote opens a span carrying the match and participant
// ids. Votes and phase transitions are counted only after commit.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/veil-backend/internal/domain"
	"github.com/tbourn/veil-backend/internal/observability"
	"github.com/tbourn/veil-backend/internal/repo"
)

// VoteService runs the per-match vote state machine:
//
//	no votes -> one vote pending -> RESOLVED (REVEALED | WIPED)
//
// The whole sequence (lock, reconcile, insert, count, resolve, wipe) runs in
// one transaction behind the match row lock, so two concurrent voters are
// serialized and exactly one of them resolves the match.
type VoteService struct {
	Deps
}

// VoteResult is returned by CastVote. Outcome is set only when Resolved.
type VoteResult struct {
	Resolved bool            `json:"resolved"`
	Outcome  *domain.Outcome `json:"outcome,omitempty"`
}

// VoteStatus is the aggregate view of a match's votes for one participant.
// It never reveals how the partner voted.
type VoteStatus struct {
	Phase        domain.Phase    `json:"phase"`
	MyVote       *bool           `json:"my_vote,omitempty"`
	PartnerVoted bool            `json:"partner_voted"`
	Outcome      *domain.Outcome `json:"outcome,omitempty"`
}

// CastVote records voterID's final vote. Errors: ErrMatchNotFound,
// ErrNotParticipant, ErrTooEarly, ErrAlreadyResolved, ErrDuplicateVote.
//
// When the second vote lands the match resolves: REVEALED iff both votes are
// true, otherwise WIPED with every message deleted in the same transaction.
func (s *VoteService) CastVote(ctx context.Context, matchID, voterID string, value bool) (VoteResult, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "CastVote",
		trace.WithAttributes(
			attribute.String("match.id", matchID),
			attribute.String("participant.id", voterID),
		),
	)
	defer span.End()

	now := s.now()
	var (
		res     VoteResult
		fx      effects
		guarded error
		cast    bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, _, applied, err := lockAndReconcile(ctx, tx, matchID, now)
		if err != nil {
			return err
		}
		fx = applied
		if !m.HasParticipant(voterID) {
			return ErrNotParticipant
		}

		switch {
		case m.Phase == domain.PhaseChat:
			guarded = ErrTooEarly
			return nil
		case m.IsResolved():
			guarded = ErrAlreadyResolved
			return nil
		}

		if _, err := repo.GetVote(ctx, tx, matchID, voterID); err == nil {
			guarded = ErrDuplicateVote
			return nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return storageErr("get vote", err)
		}

		if _, err := repo.CreateVote(ctx, tx, matchID, voterID, value, now); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateVote
			}
			return storageErr("create vote", err)
		}
		cast = true

		votes, err := repo.ListVotes(ctx, tx, matchID)
		if err != nil {
			return storageErr("list votes", err)
		}
		if len(votes) < 2 {
			return nil
		}

		outcome := decide(votes)
		resolved, ok, err := resolveTx(ctx, tx, matchID, outcome, now)
		if err != nil {
			return err
		}
		if !ok {
			// The row lock makes this unreachable; refuse to half-resolve.
			return &StorageError{Op: "resolve match", Err: errors.New("match left VOTE while locked")}
		}
		fx.merge(resolved)
		res = VoteResult{Resolved: true, Outcome: &outcome}
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}

	if cast {
		observability.VotesCast.Inc()
	}
	s.announce(ctx, matchID, fx, now)
	if guarded != nil {
		return VoteResult{}, guarded
	}
	return res, nil
}

// decide computes the outcome from the two recorded votes.
func decide(votes []domain.Vote) domain.Outcome {
	for _, v := range votes {
		if !v.Value {
			return domain.OutcomeWiped
		}
	}
	return domain.OutcomeRevealed
}

// Status reports callerID's own vote and whether the partner has voted.
func (s *VoteService) Status(ctx context.Context, matchID, callerID string) (VoteStatus, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "Status",
		trace.WithAttributes(attribute.String("match.id", matchID)),
	)
	defer span.End()

	m, err := s.reconcileRead(ctx, matchID)
	if err != nil {
		return VoteStatus{}, err
	}
	if !m.HasParticipant(callerID) {
		return VoteStatus{}, ErrNotParticipant
	}
	return voteStatus(ctx, s.DB, m, callerID)
}

func voteStatus(ctx context.Context, db *gorm.DB, m *domain.Match, callerID string) (VoteStatus, error) {
	votes, err := repo.ListVotes(ctx, db, m.ID)
	if err != nil {
		return VoteStatus{}, storageErr("list votes", err)
	}
	st := VoteStatus{Phase: m.Phase, Outcome: m.Outcome}
	for _, v := range votes {
		if v.ParticipantID == callerID {
			val := v.Value
			st.MyVote = &val
		} else {
			st.PartnerVoted = true
		}
	}
	return st, nil
}

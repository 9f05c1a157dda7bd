// Package services – MatchService
//
// This file implements MatchService: the global cycle phase and the caller's
// view of their current match, with the partner's identity withheld until
// the match is REVEALED.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/veil-backend/internal/cycle"
	"github.com/tbourn/veil-backend/internal/domain"
	"github.com/tbourn/veil-backend/internal/repo"
)

// MatchService assembles what a participant sees of their current match.
type MatchService struct {
	Deps

	Calc cycle.Calculator
}

// Reveal is the partner's identity, disclosed only after a mutual yes.
type Reveal struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
}

// MatchView is a match from one participant's side. Partner identity stays
// hidden behind TheirNick unless the outcome is REVEALED.
type MatchView struct {
	ID           string          `json:"id"`
	Date         string          `json:"date"`
	Phase        domain.Phase    `json:"phase"`
	Outcome      *domain.Outcome `json:"outcome,omitempty"`
	MyNick       string          `json:"my_nick"`
	TheirNick    string          `json:"their_nick"`
	ExpiresAt    time.Time       `json:"expires_at"`
	VoteDeadline time.Time       `json:"vote_deadline"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
	MyVote       *bool           `json:"my_vote,omitempty"`
	PartnerVoted bool            `json:"partner_voted"`
	Reveal       *Reveal         `json:"reveal,omitempty"`
}

// CurrentView is the global cycle state plus the caller's match, if any.
type CurrentView struct {
	Global cycle.State `json:"global"`
	Match  *MatchView  `json:"match,omitempty"`
}

// Phase returns the global cycle state.
func (s *MatchService) Phase() cycle.State { return s.Calc.At(s.now()) }

// CycleDate returns the date whose cycle contains now: today from the drop
// onwards, yesterday before it, since yesterday's vote window runs up to
// today's drop.
func (s *MatchService) CycleDate(now time.Time) string {
	now = now.UTC()
	if now.Before(s.Calc.DropTime(now)) {
		return cycle.Date(now.AddDate(0, 0, -1))
	}
	return cycle.Date(now)
}

// Current returns callerID's match for the running cycle, reconciled against
// the clock. Match is nil when the caller was not paired for that cycle.
func (s *MatchService) Current(ctx context.Context, callerID string) (CurrentView, error) {
	tr := otel.Tracer("services/MatchService")
	ctx, span := tr.Start(ctx, "Current",
		trace.WithAttributes(attribute.String("participant.id", callerID)),
	)
	defer span.End()

	now := s.now()
	view := CurrentView{Global: s.Calc.At(now)}

	found, err := repo.GetMatchForParticipant(ctx, s.DB, callerID, s.CycleDate(now))
	if errors.Is(err, repo.ErrNotFound) {
		return view, nil
	}
	if err != nil {
		return view, storageErr("get match for participant", err)
	}

	mv, err := s.View(ctx, found.ID, callerID)
	if err != nil {
		return view, err
	}
	view.Match = mv
	return view, nil
}

// View returns a single match from callerID's side.
func (s *MatchService) View(ctx context.Context, matchID, callerID string) (*MatchView, error) {
	m, err := s.reconcileRead(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(callerID) {
		return nil, ErrNotParticipant
	}
	st, err := voteStatus(ctx, s.DB, m, callerID)
	if err != nil {
		return nil, err
	}

	mv := &MatchView{
		ID:           m.ID,
		Date:         m.Date,
		Phase:        m.Phase,
		Outcome:      m.Outcome,
		MyNick:       m.NickFor(callerID),
		TheirNick:    m.NickFor(m.PartnerOf(callerID)),
		ExpiresAt:    m.ExpiresAt,
		VoteDeadline: m.VoteDeadline,
		ResolvedAt:   m.ResolvedAt,
		MyVote:       st.MyVote,
		PartnerVoted: st.PartnerVoted,
	}
	if m.Outcome != nil && *m.Outcome == domain.OutcomeRevealed {
		partner := m.PartnerOf(callerID)
		rv := &Reveal{ParticipantID: partner}
		p, err := repo.GetParticipant(ctx, s.DB, partner)
		switch {
		case err == nil:
			rv.DisplayName = p.DisplayName
		case !errors.Is(err, repo.ErrNotFound):
			return nil, storageErr("get participant", err)
		}
		mv.Reveal = rv
	}
	return mv, nil
}

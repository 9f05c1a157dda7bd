package services

import (
	"errors"
	"testing"
	"time"

	"github.com/tbourn/veil-backend/internal/domain"
	"github.com/tbourn/veil-backend/internal/repo"
)

// End-to-end walks through the match lifecycle over a real store.

func sweptMatch(t *testing.T, f *fixture) *domain.Match {
	t.Helper()
	f.enroll(t, "p1", "p2")
	res, err := f.sweep.RunDailyMatch(ctxBG, date0)
	if err != nil || res.MatchesCreated != 1 {
		t.Fatalf("RunDailyMatch = %+v, %v", res, err)
	}
	m, err := repo.GetMatchForParticipant(ctxBG, f.db, "p1", date0)
	if err != nil {
		t.Fatalf("GetMatchForParticipant: %v", err)
	}
	return m
}

func TestLifecycle_A_SweepThenChat(t *testing.T) {
	f := newFixture(t, drop0)
	m := sweptMatch(t, f)
	if m.Phase != domain.PhaseChat || !m.ExpiresAt.Equal(drop0.Add(22*time.Hour)) {
		t.Fatalf("swept match = %+v", m)
	}

	f.clk.Set(drop0.Add(time.Hour))
	if _, err := f.msgs.Submit(ctxBG, m.ID, "p1", "hi"); err != nil {
		t.Fatalf("p1 Submit: %v", err)
	}
	f.clk.Advance(time.Minute)
	if _, err := f.msgs.Submit(ctxBG, m.ID, "p2", "hey"); err != nil {
		t.Fatalf("p2 Submit: %v", err)
	}

	got, err := f.msgs.List(ctxBG, m.ID, "p1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Content != "hi" || !got[0].IsMe || got[1].Content != "hey" || got[1].IsMe {
		t.Fatalf("list = %+v", got)
	}
	if got[0].SenderNick != m.SlotANick || got[1].SenderNick != m.SlotBNick {
		t.Fatalf("nicknames = %s / %s", got[0].SenderNick, got[1].SenderNick)
	}
}

func TestLifecycle_B_SplitVoteWipes(t *testing.T) {
	f := newFixture(t, drop0)
	m := sweptMatch(t, f)
	f.clk.Set(drop0.Add(time.Hour))
	if _, err := f.msgs.Submit(ctxBG, m.ID, "p1", "hi"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	f.clk.Set(inVote)
	if res, err := f.votes.CastVote(ctxBG, m.ID, "p1", true); err != nil || res.Resolved {
		t.Fatalf("p1 vote = %+v, %v", res, err)
	}
	res, err := f.votes.CastVote(ctxBG, m.ID, "p2", false)
	if err != nil || !res.Resolved || *res.Outcome != domain.OutcomeWiped {
		t.Fatalf("p2 vote = %+v, %v", res, err)
	}

	got, err := f.msgs.List(ctxBG, m.ID, "p1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("messages survived wipe: %+v", got)
	}
}

func TestLifecycle_C_DuplicateVoteLeavesMatchOpen(t *testing.T) {
	f := newFixture(t, drop0)
	m := sweptMatch(t, f)

	f.clk.Set(inVote)
	if _, err := f.votes.CastVote(ctxBG, m.ID, "p1", true); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if _, err := f.votes.CastVote(ctxBG, m.ID, "p1", true); !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("second vote err = %v; want ErrDuplicateVote", err)
	}
	stored := f.load(t, m.ID)
	if stored.Phase != domain.PhaseVote || stored.Outcome != nil {
		t.Fatalf("match resolved early: %+v", stored)
	}
	if n := f.countVotes(t, m.ID); n != 1 {
		t.Fatalf("votes = %d; want 1", n)
	}
}

func TestLifecycle_D_LateMessageThenVote(t *testing.T) {
	f := newFixture(t, drop0)
	m := sweptMatch(t, f)

	f.clk.Set(m.ExpiresAt.Add(time.Second))
	if _, err := f.msgs.Submit(ctxBG, m.ID, "p1", "still there?"); !errors.Is(err, ErrChatExpired) {
		t.Fatalf("Submit err = %v; want ErrChatExpired", err)
	}
	if got := f.load(t, m.ID).Phase; got != domain.PhaseVote {
		t.Fatalf("phase = %s; want VOTE", got)
	}
	res, err := f.votes.CastVote(ctxBG, m.ID, "p1", true)
	if err != nil || res.Resolved {
		t.Fatalf("CastVote = %+v, %v", res, err)
	}
}

func TestLifecycle_ResolvedIsImmutable(t *testing.T) {
	f := newFixture(t, inVote)
	m := f.seedMatch(t, "a", "b", domain.PhaseVote)
	for _, v := range []string{"a", "b"} {
		if _, err := f.votes.CastVote(ctxBG, m.ID, v, true); err != nil {
			t.Fatalf("CastVote(%s): %v", v, err)
		}
	}
	before := f.load(t, m.ID)

	f.clk.Set(drop0.Add(72 * time.Hour))
	if _, err := f.rec.ReconcileExpired(ctxBG); err != nil {
		t.Fatalf("ReconcileExpired: %v", err)
	}
	if _, err := f.msgs.Submit(ctxBG, m.ID, "a", "hello?"); !errors.Is(err, ErrPhaseLocked) {
		t.Fatalf("Submit err = %v", err)
	}
	if _, err := f.votes.CastVote(ctxBG, m.ID, "a", false); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("CastVote err = %v", err)
	}

	after := f.load(t, m.ID)
	if after.Phase != domain.PhaseResolved || *after.Outcome != *before.Outcome || !after.ResolvedAt.Equal(*before.ResolvedAt) {
		t.Fatalf("resolved match changed: %+v -> %+v", before, after)
	}
}

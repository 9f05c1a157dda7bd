package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/veil-backend/internal/domain"
	"github.com/tbourn/veil-backend/internal/repo"
)

// inVote is an instant inside the default vote window of date0.
var inVote = drop0.Add(23 * time.Hour)

func TestCastVote_Guards(t *testing.T) {
	f := newFixture(t, drop0.Add(time.Hour))
	chat := f.seedMatch(t, "a", "b", domain.PhaseChat)
	resolved := f.seedMatch(t, "c", "d", domain.PhaseVote)
	if ok, err := repo.ResolveMatch(ctxBG, f.db, resolved.ID, domain.OutcomeRevealed, drop0); err != nil || !ok {
		t.Fatalf("ResolveMatch: %v %v", ok, err)
	}

	tests := []struct {
		name    string
		matchID string
		voter   string
		want    error
	}{
		{"unknown match", "nope", "a", ErrMatchNotFound},
		{"outsider", chat.ID, "c", ErrNotParticipant},
		{"chat still open", chat.ID, "a", ErrTooEarly},
		{"resolved", resolved.ID, "c", ErrAlreadyResolved},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.votes.CastVote(ctxBG, tc.matchID, tc.voter, true)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v; want %v", err, tc.want)
			}
		})
	}
	if n := f.countVotes(t, chat.ID); n != 0 {
		t.Fatalf("early vote recorded")
	}
}

func TestCastVote_Outcomes(t *testing.T) {
	tests := []struct {
		name   string
		a, b   bool
		want   domain.Outcome
		msgsOK bool
	}{
		{"both yes", true, true, domain.OutcomeRevealed, true},
		{"split", true, false, domain.OutcomeWiped, false},
		{"both no", false, false, domain.OutcomeWiped, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, drop0.Add(time.Hour))
			m := f.seedMatch(t, "a", "b", domain.PhaseChat)
			for _, s := range []string{"x", "y"} {
				if _, err := f.msgs.Submit(ctxBG, m.ID, "a", s); err != nil {
					t.Fatalf("Submit: %v", err)
				}
			}
			f.clk.Set(inVote)

			first, err := f.votes.CastVote(ctxBG, m.ID, "a", tc.a)
			if err != nil || first.Resolved {
				t.Fatalf("first vote = %+v, %v", first, err)
			}
			second, err := f.votes.CastVote(ctxBG, m.ID, "b", tc.b)
			if err != nil || !second.Resolved || second.Outcome == nil || *second.Outcome != tc.want {
				t.Fatalf("second vote = %+v, %v", second, err)
			}

			stored := f.load(t, m.ID)
			if stored.Phase != domain.PhaseResolved || stored.ResolvedAt == nil || *stored.Outcome != tc.want {
				t.Fatalf("stored = %+v", stored)
			}
			n := f.countMessages(t, m.ID)
			if tc.msgsOK && n != 2 {
				t.Fatalf("messages = %d; want 2", n)
			}
			if !tc.msgsOK && n != 0 {
				t.Fatalf("messages = %d; want 0", n)
			}
		})
	}
}

func TestCastVote_ChatLapsedOpensVoting(t *testing.T) {
	f := newFixture(t, inVote)
	m := f.seedMatch(t, "a", "b", domain.PhaseChat)
	res, err := f.votes.CastVote(ctxBG, m.ID, "a", true)
	if err != nil || res.Resolved {
		t.Fatalf("CastVote = %+v, %v", res, err)
	}
	if got := f.load(t, m.ID).Phase; got != domain.PhaseVote {
		t.Fatalf("phase = %s; want VOTE", got)
	}
}

func TestCastVote_AfterDeadlineIsResolved(t *testing.T) {
	f := newFixture(t, drop0.Add(24*time.Hour))
	m := f.seedMatch(t, "a", "b", domain.PhaseVote)
	if _, err := f.votes.CastVote(ctxBG, m.ID, "a", true); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("err = %v; want ErrAlreadyResolved", err)
	}
	stored := f.load(t, m.ID)
	if stored.Outcome == nil || *stored.Outcome != domain.OutcomeWiped {
		t.Fatalf("lapsed match should be wiped: %+v", stored)
	}
}

func TestCastVote_DuplicateInEitherOrder(t *testing.T) {
	for _, value := range []bool{true, false} {
		f := newFixture(t, inVote)
		m := f.seedMatch(t, "a", "b", domain.PhaseVote)
		if _, err := f.votes.CastVote(ctxBG, m.ID, "a", value); err != nil {
			t.Fatalf("first vote: %v", err)
		}
		if _, err := f.votes.CastVote(ctxBG, m.ID, "a", !value); !errors.Is(err, ErrDuplicateVote) {
			t.Fatalf("second vote err = %v; want ErrDuplicateVote", err)
		}
		if n := f.countVotes(t, m.ID); n != 1 {
			t.Fatalf("votes = %d; want 1", n)
		}
		v, err := repo.GetVote(ctxBG, f.db, m.ID, "a")
		if err != nil || v.Value != value {
			t.Fatalf("vote overwritten: %+v, %v", v, err)
		}
	}
}

// castBothConcurrently races the two slots' votes on a fresh VOTE match and
// checks that exactly one call resolved it and the wipe removed the messages.
func castBothConcurrently(t *testing.T, f *fixture, round int) {
	t.Helper()
	a, b := fmt.Sprintf("a%d", round), fmt.Sprintf("b%d", round)
	m := f.seedMatch(t, a, b, domain.PhaseVote)
	if _, err := repo.CreateMessage(ctxBG, f.db, m.ID, a, "x", drop0); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []VoteResult
		errs    []error
	)
	start := make(chan struct{})
	for _, voter := range []string{a, b} {
		wg.Add(1)
		go func(voter string) {
			defer wg.Done()
			<-start
			res, err := f.votes.CastVote(ctxBG, m.ID, voter, voter == a)
			mu.Lock()
			defer mu.Unlock()
			results = append(results, res)
			errs = append(errs, err)
		}(voter)
	}
	close(start)
	wg.Wait()

	resolved := 0
	for i, res := range results {
		if errs[i] != nil {
			t.Fatalf("round %d: CastVote: %v", round, errs[i])
		}
		if res.Resolved {
			resolved++
			if *res.Outcome != domain.OutcomeWiped {
				t.Fatalf("round %d: outcome = %s", round, *res.Outcome)
			}
		}
	}
	if resolved != 1 {
		t.Fatalf("round %d: resolved %d times; want exactly 1", round, resolved)
	}
	stored := f.load(t, m.ID)
	if stored.Phase != domain.PhaseResolved || stored.Outcome == nil || *stored.Outcome != domain.OutcomeWiped {
		t.Fatalf("round %d: stored match = %+v", round, stored)
	}
	if n := f.countMessages(t, m.ID); n != 0 {
		t.Fatalf("round %d: messages survived a wipe", round)
	}
}

func TestCastVote_ConcurrentResolvesOnce(t *testing.T) {
	f := newFixture(t, inVote)
	for round := 0; round < 20; round++ {
		castBothConcurrently(t, f, round)
	}
}

// On the file-backed pool the two transactions really overlap, so only the
// match row lock and the resolve guard keep the outcome single.
func TestCastVote_ConcurrentResolvesOnce_PooledSQLite(t *testing.T) {
	f := newFixtureOn(t, newFileDB(t), inVote)
	for round := 0; round < 50; round++ {
		castBothConcurrently(t, f, round)
	}
}

func TestStatus_HidesPartnerVote(t *testing.T) {
	f := newFixture(t, inVote)
	m := f.seedMatch(t, "a", "b", domain.PhaseVote)
	if _, err := f.votes.CastVote(ctxBG, m.ID, "a", false); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	mine, err := f.votes.Status(ctxBG, m.ID, "a")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if mine.MyVote == nil || *mine.MyVote || mine.PartnerVoted {
		t.Fatalf("a's status = %+v", mine)
	}
	theirs, err := f.votes.Status(ctxBG, m.ID, "b")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if theirs.MyVote != nil || !theirs.PartnerVoted || theirs.Outcome != nil {
		t.Fatalf("b's status = %+v", theirs)
	}
	if _, err := f.votes.Status(ctxBG, m.ID, "z"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("outsider err = %v", err)
	}
}

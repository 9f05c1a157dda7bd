package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTransition(t *testing.T) {
	c := PhaseTransitions.WithLabelValues("CHAT", "VOTE")
	base := testutil.ToFloat64(c)
	RecordTransition("CHAT", "VOTE")
	RecordTransition("CHAT", "VOTE")
	if got := testutil.ToFloat64(c) - base; got != 2 {
		t.Fatalf("transitions delta = %v; want 2", got)
	}
}

func TestRecordResolution(t *testing.T) {
	rev := MatchesResolved.WithLabelValues("REVEALED")
	wiped := MatchesResolved.WithLabelValues("WIPED")
	baseRev, baseWiped, baseMsgs := testutil.ToFloat64(rev), testutil.ToFloat64(wiped), testutil.ToFloat64(MessagesWiped)

	RecordResolution("REVEALED", 0)
	RecordResolution("WIPED", 4)
	RecordResolution("WIPED", 0)

	if got := testutil.ToFloat64(rev) - baseRev; got != 1 {
		t.Fatalf("revealed delta = %v", got)
	}
	if got := testutil.ToFloat64(wiped) - baseWiped; got != 2 {
		t.Fatalf("wiped delta = %v", got)
	}
	if got := testutil.ToFloat64(MessagesWiped) - baseMsgs; got != 4 {
		t.Fatalf("messages wiped delta = %v", got)
	}
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Domain counters for the match lifecycle. Labels are limited to phase names
// and outcomes so cardinality stays fixed.
var (
	MatchesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veil_matches_created_total",
		Help: "Matches created by the daily sweep.",
	})

	SweepUnpaired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veil_sweep_unpaired_total",
		Help: "Participants left without a partner by a sweep run.",
	})

	SweepSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veil_sweep_skipped_pairs_total",
		Help: "Pairs dropped by a sweep because a participant was already slotted for the date.",
	})

	MessagesStored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veil_messages_stored_total",
		Help: "Chat messages accepted by the message gate.",
	})

	PhaseTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "veil_phase_transitions_total",
		Help: "Persisted match phase transitions.",
	}, []string{"from", "to"})

	VotesCast = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veil_votes_cast_total",
		Help: "Votes recorded.",
	})

	MatchesResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "veil_matches_resolved_total",
		Help: "Matches resolved, by outcome.",
	}, []string{"outcome"})

	MessagesWiped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veil_messages_wiped_total",
		Help: "Messages permanently deleted by WIPED resolutions.",
	})
)

func init() {
	prometheus.MustRegister(
		MatchesCreated,
		SweepUnpaired,
		SweepSkipped,
		MessagesStored,
		PhaseTransitions,
		VotesCast,
		MatchesResolved,
		MessagesWiped,
	)
}

// RecordTransition counts a persisted phase change.
func RecordTransition(from, to string) {
	PhaseTransitions.WithLabelValues(from, to).Inc()
}

// RecordResolution counts a resolved match and, for wipes, the deleted messages.
func RecordResolution(outcome string, wiped int64) {
	MatchesResolved.WithLabelValues(outcome).Inc()
	if wiped > 0 {
		MessagesWiped.Add(float64(wiped))
	}
}

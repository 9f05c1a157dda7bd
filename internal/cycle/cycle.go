// Package cycle computes the global daily match cycle: the drop instant, the
// end of the chat window, and the end of the vote window for a UTC day.
//
// The global phase is advisory. Once a participant has a match, the match's
// own expiry timestamps decide what is allowed; this package only answers
// "what would a participant without a match see right now" and "when should
// the next sweep run".
package cycle

import (
	"errors"
	"fmt"
	"time"
)

// Phase is the global cycle phase.
type Phase string

const (
	PhaseWaiting Phase = "WAITING"
	PhaseChat    Phase = "CHAT"
	PhaseVote    Phase = "VOTE"
)

// DateLayout is the canonical calendar-day format used for match dates.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// Defaults match the production cadence: drop at 10:00 UTC, 22h of chat, 2h of voting.
const (
	DefaultDropHour     = 10
	DefaultChatDuration = 22 * time.Hour
)

// ErrInvalidDate is returned by ParseDate for anything that is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("date must be formatted as YYYY-MM-DD")

// Calculator maps wall-clock time onto the daily cycle.
type Calculator struct {
	// DropHour is the UTC hour (0-23) at which new matches go live.
	DropHour int
	// ChatDuration is the length of the chat window. The vote window is the
	// remainder of the 24h cycle.
	ChatDuration time.Duration
}

// New returns a Calculator for the given drop hour and chat duration in hours.
func New(dropHour, chatHours int) Calculator {
	return Calculator{DropHour: dropHour, ChatDuration: time.Duration(chatHours) * time.Hour}
}

// Window holds the three boundary instants of one day's cycle.
type Window struct {
	Date       string    `json:"date"`
	DropTime   time.Time `json:"drop_time"`
	ChatExpiry time.Time `json:"chat_expiry"`
	VoteExpiry time.Time `json:"vote_expiry"`
}

// State is the global phase at an instant plus the next boundary.
type State struct {
	Phase          Phase     `json:"phase"`
	NextTransition time.Time `json:"next_transition"`
	Window
}

// VoteDuration returns the length of the vote window (24h minus chat).
func (c Calculator) VoteDuration() time.Duration { return day - c.ChatDuration }

// DropTime returns the drop instant on now's UTC calendar day.
func (c Calculator) DropTime(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), c.DropHour, 0, 0, 0, time.UTC)
}

// ChatExpiry returns the end of the chat window that starts at drop.
func (c Calculator) ChatExpiry(drop time.Time) time.Time { return drop.Add(c.ChatDuration) }

// VoteExpiry returns the end of the vote window that starts at drop.
func (c Calculator) VoteExpiry(drop time.Time) time.Time {
	return c.ChatExpiry(drop).Add(c.VoteDuration())
}

// At reports the global phase at now.
//
//	now <  drop                    WAITING (next: drop)
//	drop <= now < chat expiry      CHAT    (next: chat expiry)
//	chat expiry <= now < vote exp. VOTE    (next: vote expiry)
//	otherwise                      WAITING (next: the following day's drop)
func (c Calculator) At(now time.Time) State {
	now = now.UTC()
	drop := c.DropTime(now)
	w := c.window(drop)

	switch {
	case now.Before(w.DropTime):
		return State{Phase: PhaseWaiting, NextTransition: w.DropTime, Window: w}
	case now.Before(w.ChatExpiry):
		return State{Phase: PhaseChat, NextTransition: w.ChatExpiry, Window: w}
	case now.Before(w.VoteExpiry):
		return State{Phase: PhaseVote, NextTransition: w.VoteExpiry, Window: w}
	default:
		return State{Phase: PhaseWaiting, NextTransition: w.VoteExpiry, Window: w}
	}
}

// Window returns the cycle boundaries for a YYYY-MM-DD date.
func (c Calculator) Window(date string) (Window, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Window{}, err
	}
	return c.window(c.DropTime(d)), nil
}

// NextDrop returns the first drop instant strictly after now.
func (c Calculator) NextDrop(now time.Time) time.Time {
	drop := c.DropTime(now)
	if now.UTC().Before(drop) {
		return drop
	}
	return drop.Add(day)
}

func (c Calculator) window(drop time.Time) Window {
	return Window{
		Date:       Date(drop),
		DropTime:   drop,
		ChatExpiry: c.ChatExpiry(drop),
		VoteExpiry: c.VoteExpiry(drop),
	}
}

// Validate reports whether the calculator settings describe a usable cycle.
func (c Calculator) Validate() error {
	if c.DropHour < 0 || c.DropHour > 23 {
		return fmt.Errorf("drop hour %d out of range 0-23", c.DropHour)
	}
	if c.ChatDuration < time.Hour || c.ChatDuration >= day {
		return fmt.Errorf("chat duration %s must be between 1h and 23h", c.ChatDuration)
	}
	return nil
}

// Date formats t as the UTC calendar day.
func Date(t time.Time) string { return t.UTC().Format(DateLayout) }

// ParseDate parses a YYYY-MM-DD string into midnight UTC of that day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

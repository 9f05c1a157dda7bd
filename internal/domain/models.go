// Package domain defines the persistence models for participants, matches,
// messages and votes. These types are mapped with GORM and shared by the
// repository and service layers.
package domain

import "time"

// Phase is the lifecycle stage of a single match. Matches are never stored
// in a waiting state; waiting is the absence of a match.
type Phase string

const (
	PhaseChat     Phase = "CHAT"
	PhaseVote     Phase = "VOTE"
	PhaseResolved Phase = "RESOLVED"
)

// Outcome is the terminal result of a resolved match.
type Outcome string

const (
	OutcomeRevealed Outcome = "REVEALED"
	OutcomeWiped    Outcome = "WIPED"
)

// Participant is an enrolled member of the pool the daily sweep draws from.
// Credentials live with the identity provider; DisplayName is only disclosed
// on a mutual reveal.
type Participant struct {
	ID          string    `json:"id"           gorm:"type:varchar(64);primaryKey"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255);not null;default:''"`
	CreatedAt   time.Time `json:"created_at"   gorm:"not null;index:idx_participants_order,priority:1"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Participant.
func (Participant) TableName() string { return "participants" }

// Match pairs two participants for one UTC calendar day.
//
// Fields:
//   - SlotAID / SlotBID: the two participants; order is fixed at creation.
//   - SlotANick / SlotBNick: per-slot nicknames, immutable.
//   - Date: the YYYY-MM-DD day the match belongs to.
//   - Phase: CHAT, VOTE or RESOLVED.
//   - ExpiresAt: end of the chat window.
//   - VoteDeadline: end of the vote window; an unresolved match past it is wiped.
//   - Outcome / ResolvedAt: set together, only when Phase is RESOLVED.
type Match struct {
	ID           string     `json:"id"            gorm:"type:char(36);primaryKey"`
	SlotAID      string     `json:"slot_a_id"     gorm:"type:varchar(64);not null;index"`
	SlotBID      string     `json:"slot_b_id"     gorm:"type:varchar(64);not null;index"`
	SlotANick    string     `json:"slot_a_nick"   gorm:"type:varchar(64);not null"`
	SlotBNick    string     `json:"slot_b_nick"   gorm:"type:varchar(64);not null"`
	Date         string     `json:"date"          gorm:"type:char(10);not null;index"`
	Phase        Phase      `json:"phase"         gorm:"type:varchar(16);not null;index:idx_match_phase_expiry,priority:1;check:phase IN ('CHAT','VOTE','RESOLVED')"`
	ExpiresAt    time.Time  `json:"expires_at"    gorm:"not null;index:idx_match_phase_expiry,priority:2"`
	VoteDeadline time.Time  `json:"vote_deadline" gorm:"not null"`
	Outcome      *Outcome   `json:"outcome,omitempty"     gorm:"type:varchar(16)"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Match.
func (Match) TableName() string { return "matches" }

// HasParticipant reports whether id occupies either slot.
func (m *Match) HasParticipant(id string) bool {
	return id != "" && (m.SlotAID == id || m.SlotBID == id)
}

// NickFor returns the nickname of the given participant, or "" if they are
// not in this match.
func (m *Match) NickFor(id string) string {
	switch id {
	case m.SlotAID:
		return m.SlotANick
	case m.SlotBID:
		return m.SlotBNick
	}
	return ""
}

// PartnerOf returns the id of the other participant.
func (m *Match) PartnerOf(id string) string {
	switch id {
	case m.SlotAID:
		return m.SlotBID
	case m.SlotBID:
		return m.SlotAID
	}
	return ""
}

// IsResolved reports whether the match has reached its terminal phase.
func (m *Match) IsResolved() bool { return m.Phase == PhaseResolved }

// MatchSlot records that a participant is taken for a date. The unique index
// on (participant_id, date) is what guarantees a single match per participant
// per day, even under concurrent sweeps.
type MatchSlot struct {
	ParticipantID string    `json:"participant_id" gorm:"type:varchar(64);primaryKey;uniqueIndex:ux_slot_participant_date,priority:1"`
	Date          string    `json:"date"           gorm:"type:char(10);primaryKey;uniqueIndex:ux_slot_participant_date,priority:2"`
	MatchID       string    `json:"match_id"       gorm:"type:char(36);not null;index"`
	CreatedAt     time.Time `json:"created_at"`

	Match Match `json:"-" gorm:"foreignKey:MatchID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MatchSlot.
func (MatchSlot) TableName() string { return "match_slots" }

// Message is a single chat line inside a match. There is no soft delete:
// wiping a match removes its messages for good.
type Message struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	MatchID   string    `json:"match_id"   gorm:"type:char(36);not null;index:idx_match_msgs,priority:1"`
	SenderID  string    `json:"sender_id"  gorm:"type:varchar(64);not null"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_match_msgs,priority:2"`

	Match Match `json:"-" gorm:"foreignKey:MatchID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Vote is a participant's final yes/no on revealing identities.
type Vote struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	MatchID       string    `json:"match_id"       gorm:"type:char(36);not null;uniqueIndex:ux_vote_match_participant,priority:1"`
	ParticipantID string    `json:"participant_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_vote_match_participant,priority:2"`
	Value         bool      `json:"value"          gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`

	Match Match `json:"-" gorm:"foreignKey:MatchID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// All lists every model, in migration order.
func All() []any {
	return []any{&Participant{}, &Match{}, &MatchSlot{}, &Message{}, &Vote{}, &Idempotency{}}
}

package domain

import "time"

// Idempotency records the result of a processed message submission keyed by
// (user_id, match_id, key), so a retried POST returns the original message
// instead of storing a second copy.
type Idempotency struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_match_key,priority:1"`
	MatchID   string    `gorm:"type:char(36);not null;uniqueIndex:ux_user_match_key,priority:2"`
	Key       string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_user_match_key,priority:3"`
	MessageID string    `gorm:"type:char(36);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

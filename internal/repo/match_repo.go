package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/veil-backend/internal/domain"
)

// CreateMatch inserts m together with one MatchSlot per participant in a
// single transaction. If either participant already holds a slot for
// m.Date, nothing is written and ErrDuplicate is returned.
func CreateMatch(ctx context.Context, db *gorm.DB, m *domain.Match) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		slots := []domain.MatchSlot{
			{ParticipantID: m.SlotAID, Date: m.Date, MatchID: m.ID, CreatedAt: m.CreatedAt},
			{ParticipantID: m.SlotBID, Date: m.Date, MatchID: m.ID, CreatedAt: m.CreatedAt},
		}
		if err := tx.Create(&slots).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

// GetMatch fetches a match by id.
func GetMatch(ctx context.Context, db *gorm.DB, id string) (*domain.Match, error) {
	var m domain.Match
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMatchForParticipant returns the match participantID holds on date.
func GetMatchForParticipant(ctx context.Context, db *gorm.DB, participantID, date string) (*domain.Match, error) {
	var m domain.Match
	err := db.WithContext(ctx).
		Joins("JOIN match_slots ON match_slots.match_id = matches.id").
		Where("match_slots.participant_id = ? AND match_slots.date = ?", participantID, date).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// LockMatch serializes writers on one match. Issued as the first statement of
// a transaction it takes the row lock on PostgreSQL and the database write
// lock on SQLite, both held until commit.
func LockMatch(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	res := db.WithContext(ctx).Exec("UPDATE matches SET updated_at = ? WHERE id = ?", now, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MoveToVote flips a CHAT match to VOTE. It reports false when the match was
// no longer in CHAT, which means another writer got there first.
func MoveToVote(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Match{}).
		Where("id = ? AND phase = ?", id, domain.PhaseChat).
		Updates(map[string]any{"phase": domain.PhaseVote, "updated_at": now})
	return res.RowsAffected == 1, res.Error
}

// ResolveMatch moves a VOTE match to RESOLVED with the given outcome. The
// phase guard makes it a compare-and-swap: only one caller can win.
func ResolveMatch(ctx context.Context, db *gorm.DB, id string, outcome domain.Outcome, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Match{}).
		Where("id = ? AND phase = ?", id, domain.PhaseVote).
		Updates(map[string]any{
			"phase":       domain.PhaseResolved,
			"outcome":     outcome,
			"resolved_at": now,
			"updated_at":  now,
		})
	return res.RowsAffected == 1, res.Error
}

// TouchOpenChat bumps updated_at only while the match is in CHAT and its chat
// window has not passed. A false result means a message must not be stored.
func TouchOpenChat(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Match{}).
		Where("id = ? AND phase = ? AND expires_at >= ?", id, domain.PhaseChat, now).
		Update("updated_at", now)
	return res.RowsAffected == 1, res.Error
}

// ListLaggingMatches returns matches whose stored phase is behind the clock:
// CHAT past expires_at, or VOTE at or past vote_deadline. Oldest first.
func ListLaggingMatches(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Match, error) {
	var out []domain.Match
	q := db.WithContext(ctx).
		Where("(phase = ? AND expires_at < ?) OR (phase = ? AND vote_deadline <= ?)",
			domain.PhaseChat, now, domain.PhaseVote, now).
		Order("expires_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

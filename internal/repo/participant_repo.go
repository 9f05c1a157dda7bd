// Package repo implements the data persistence layer for domain entities,
// backed by GORM.
//
// All functions take a context and a *gorm.DB handle, which may be a
// transaction. They follow the thin repository approach: persistence and
// query composition only, with state-machine rules left to the services.
//
// Error semantics:
//   - Missing rows surface as ErrNotFound (gorm.ErrRecordNotFound).
//   - Unique index violations surface as ErrDuplicate.
//   - Conditional updates report whether they matched a row instead of
//     failing, so callers can implement compare-and-swap transitions.
//   - Anything else is the raw gorm error.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/veil-backend/internal/domain"
)

// UpsertParticipant enrolls id, or refreshes its display name when already
// enrolled. CreatedAt is kept on conflict so pairing order stays stable.
func UpsertParticipant(ctx context.Context, db *gorm.DB, id, displayName string, now time.Time) (*domain.Participant, error) {
	p := &domain.Participant{
		ID:          id,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "updated_at"}),
		}).
		Create(p).Error
	if err != nil {
		return nil, err
	}
	return GetParticipant(ctx, db, id)
}

// GetParticipant fetches a participant by id.
func GetParticipant(ctx context.Context, db *gorm.DB, id string) (*domain.Participant, error) {
	var p domain.Participant
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListUnmatchedParticipants returns every participant without a slot on date,
// ordered by (created_at, id). This order is the pairing order.
func ListUnmatchedParticipants(ctx context.Context, db *gorm.DB, date string) ([]domain.Participant, error) {
	var out []domain.Participant
	err := db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM match_slots s WHERE s.participant_id = participants.id AND s.date = ?)", date).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

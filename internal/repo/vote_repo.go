package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/veil-backend/internal/domain"
)

// CreateVote records a participant's vote. A second vote by the same
// participant on the same match returns ErrDuplicate.
func CreateVote(ctx context.Context, db *gorm.DB, matchID, participantID string, value bool, now time.Time) (*domain.Vote, error) {
	v := &domain.Vote{
		ID:            uuid.NewString(),
		MatchID:       matchID,
		ParticipantID: participantID,
		Value:         value,
		CreatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return v, nil
}

// GetVote returns participantID's vote on matchID, or ErrNotFound.
func GetVote(ctx context.Context, db *gorm.DB, matchID, participantID string) (*domain.Vote, error) {
	var v domain.Vote
	err := db.WithContext(ctx).
		Where("match_id = ? AND participant_id = ?", matchID, participantID).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVotes returns all votes of a match in insertion order.
func ListVotes(ctx context.Context, db *gorm.DB, matchID string) ([]domain.Vote, error) {
	var out []domain.Vote
	err := db.WithContext(ctx).Where("match_id = ?", matchID).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

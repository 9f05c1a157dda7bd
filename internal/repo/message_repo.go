package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/veil-backend/internal/domain"
)

// CreateMessage inserts a message with a server-assigned id and timestamp.
func CreateMessage(ctx context.Context, db *gorm.DB, matchID, senderID, content string, now time.Time) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: now,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by id.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns a match's messages ordered (created_at ASC, id ASC).
// A non-positive limit returns all of them.
func ListMessages(ctx context.Context, db *gorm.DB, matchID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).Where("match_id = ?", matchID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListMessagesPage returns a window of a match's messages in List order.
func ListMessagesPage(ctx context.Context, db *gorm.DB, matchID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountMessages returns the number of messages in a match.
func CountMessages(ctx context.Context, db *gorm.DB, matchID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Message{}).Where("match_id = ?", matchID).Count(&total).Error
	return total, err
}

// DeleteMessagesForMatch permanently removes every message of a match and
// returns how many rows went away.
func DeleteMessagesForMatch(ctx context.Context, db *gorm.DB, matchID string) (int64, error) {
	res := db.WithContext(ctx).Where("match_id = ?", matchID).Delete(&domain.Message{})
	return res.RowsAffected, res.Error
}

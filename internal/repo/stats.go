package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/veil-backend/internal/domain"
)

// MessagesStats returns the number of messages in a match and the newest
// created_at among them (nil when there are none). The HTTP layer folds these
// into an ETag for conditional GETs.
func MessagesStats(ctx context.Context, db *gorm.DB, matchID string) (count int64, lastCreatedAt *time.Time, err error) {
	if err = db.WithContext(ctx).Model(&domain.Message{}).Where("match_id = ?", matchID).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// ORDER BY + LIMIT instead of MAX(), which comes back as TEXT on SQLite.
	var row struct {
		CreatedAt time.Time
	}
	err = db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("created_at").
		Where("match_id = ?", matchID).
		Order("created_at DESC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

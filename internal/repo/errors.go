package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can match either.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique index rejected the insert: a second vote
// by the same participant, a participant already slotted for a date, or a
// reused idempotency key.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation recognizes unique-index failures across drivers. GORM
// translates them when TranslateError is on; test handles opened without it
// still surface the raw driver text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

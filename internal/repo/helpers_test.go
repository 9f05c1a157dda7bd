package repo

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/veil-backend/internal/domain"
)

// newRepoDB opens an isolated in-memory database with the full schema.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:repo_" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

var day0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func seedMatch(t *testing.T, db *gorm.DB, id, a, b, date string, phase domain.Phase) *domain.Match {
	t.Helper()
	m := &domain.Match{
		ID: id, SlotAID: a, SlotBID: b, SlotANick: "Nick" + a, SlotBNick: "Nick" + b,
		Date: date, Phase: phase,
		ExpiresAt: day0.Add(22 * time.Hour), VoteDeadline: day0.Add(24 * time.Hour),
		CreatedAt: day0, UpdatedAt: day0,
	}
	if err := CreateMatch(ctxBG, db, m); err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	return m
}

func ids(ps []domain.Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/veil-backend/internal/clock"
	"github.com/tbourn/veil-backend/internal/cycle"
	"github.com/tbourn/veil-backend/internal/domain"
	"github.com/tbourn/veil-backend/internal/repo"
)

var ctxBG = context.Background()

// drop0 is the 2024-01-01 drop with the default 10:00 UTC / 22h cycle.
var drop0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

const date0 = "2024-01-01"

var calc = cycle.New(cycle.DefaultDropHour, 22)

// newServiceDB opens an isolated in-memory database with the full schema.
// One connection keeps concurrent transactions serialized the way a single
// SQLite writer would.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:svc_" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
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

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fixture struct {
	db    *gorm.DB
	clk   *clock.Manual
	deps  Deps
	msgs  *MessageService
	votes *VoteService
	sweep *SweepService
	rec   *ReconcileService
	parts *ParticipantService
	match *MatchService
}

// newFileDB opens a file-backed database through repo.OpenSQLite, so tests
// run on the production pool: several connections, WAL and busy_timeout.
func newFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "veil.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	db = db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newFixture wires every service over one in-memory database with a manual
// clock set to now.
func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	return newFixtureOn(t, newServiceDB(t), now)
}

func newFixtureOn(t *testing.T, db *gorm.DB, now time.Time) *fixture {
	t.Helper()
	clk := clock.NewManual(now)
	deps := Deps{DB: db, Clock: clk}
	return &fixture{
		db:    db,
		clk:   clk,
		deps:  deps,
		msgs:  &MessageService{Deps: deps},
		votes: &VoteService{Deps: deps},
		sweep: &SweepService{Deps: deps, Calc: calc},
		rec:   &ReconcileService{Deps: deps},
		parts: &ParticipantService{Deps: deps},
		match: &MatchService{Deps: deps, Calc: calc},
	}
}

// enroll adds participants one second apart so their pairing order is fixed.
func (f *fixture) enroll(t *testing.T, ids ...string) {
	t.Helper()
	start := f.clk.Now()
	for i, id := range ids {
		f.clk.Set(start.Add(time.Duration(i) * time.Second))
		if _, err := f.parts.Enroll(ctxBG, id, "Name "+id); err != nil {
			t.Fatalf("Enroll(%s): %v", id, err)
		}
	}
	f.clk.Set(start)
}

// seedMatch stores a match for date0 with the default deadlines.
func (f *fixture) seedMatch(t *testing.T, a, b string, phase domain.Phase) *domain.Match {
	t.Helper()
	m := &domain.Match{
		ID:           uuid.NewString(),
		SlotAID:      a,
		SlotBID:      b,
		SlotANick:    "Nick" + a,
		SlotBNick:    "Nick" + b,
		Date:         date0,
		Phase:        phase,
		ExpiresAt:    drop0.Add(22 * time.Hour),
		VoteDeadline: drop0.Add(24 * time.Hour),
		CreatedAt:    drop0,
		UpdatedAt:    drop0,
	}
	if err := repo.CreateMatch(ctxBG, f.db, m); err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	return m
}

func (f *fixture) load(t *testing.T, id string) *domain.Match {
	t.Helper()
	m, err := repo.GetMatch(ctxBG, f.db, id)
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	return m
}

func (f *fixture) countMessages(t *testing.T, id string) int64 {
	t.Helper()
	n, err := repo.CountMessages(ctxBG, f.db, id)
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	return n
}

func (f *fixture) countVotes(t *testing.T, id string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&domain.Vote{}).Where("match_id = ?", id).Count(&n).Error; err != nil {
		t.Fatalf("count votes: %v", err)
	}
	return n
}

func (f *fixture) matchesOn(t *testing.T, date string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&domain.Match{}).Where("date = ?", date).Count(&n).Error; err != nil {
		t.Fatalf("count matches: %v", err)
	}
	return n
}

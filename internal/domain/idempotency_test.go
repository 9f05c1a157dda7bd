package domain

import (
	"testing"
	"time"
)

func TestIdempotency_UniqueKeyPerUserAndMatch(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	now := time.Now().UTC()

	rec := &Idempotency{ID: "id-1", UserID: "u1", MatchID: "m1", Key: "k1", MessageID: "msg1", Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert valid: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "id-1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.UserID != "u1" || got.MatchID != "m1" || got.Key != "k1" || got.MessageID != "msg1" || got.Status != 201 {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt should be set automatically")
	}

	dup := &Idempotency{ID: "id-2", UserID: "u1", MatchID: "m1", Key: "k1", MessageID: "msg2", Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected UNIQUE constraint violation on (user_id, match_id, key)")
	}

	other := &Idempotency{ID: "id-3", UserID: "u1", MatchID: "m2", Key: "k1", MessageID: "msg3", Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("same key on a different match should be allowed: %v", err)
	}
}

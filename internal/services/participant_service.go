package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/veil-backend/internal/domain"
	"github.com/tbourn/veil-backend/internal/repo"
)

// Limits on participant fields.
const (
	MaxParticipantIDLen = 64
	MaxDisplayNameRunes = 64
)

// ParticipantService manages the enrolled pool.
type ParticipantService struct {
	Deps
}

// Enroll adds id to the pool or updates its display name. Calling it again is
// harmless; the original enrollment time, and so the pairing order, is kept.
func (s *ParticipantService) Enroll(ctx context.Context, id, displayName string) (*domain.Participant, error) {
	tr := otel.Tracer("services/ParticipantService")
	ctx, span := tr.Start(ctx, "Enroll",
		trace.WithAttributes(attribute.String("participant.id", id)),
	)
	defer span.End()

	id = strings.TrimSpace(id)
	displayName = strings.TrimSpace(NormalizeContent(displayName))
	if id == "" || len(id) > MaxParticipantIDLen {
		return nil, ErrInvalidInput
	}
	if strings.ContainsAny(displayName, "\n") || utf8.RuneCountInString(displayName) > MaxDisplayNameRunes {
		return nil, ErrInvalidInput
	}

	p, err := repo.UpsertParticipant(ctx, s.DB, id, displayName, s.now())
	if err != nil {
		return nil, storageErr("upsert participant", err)
	}
	return p, nil
}

// Get returns an enrolled participant or ErrNotEnrolled.
func (s *ParticipantService) Get(ctx context.Context, id string) (*domain.Participant, error) {
	p, err := repo.GetParticipant(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotEnrolled
	}
	if err != nil {
		return nil, storageErr("get participant", err)
	}
	return p, nil
}

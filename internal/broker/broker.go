// Package broker carries match lifecycle events out of the core over redis
// pub/sub and provides a redis-backed lock used to keep concurrent sweeps
// from doing duplicate work.
//
// Neither is required for correctness: the store enforces every invariant.
// Events are a notification hook for whatever delivers updates to clients,
// and the lock only saves a second sweep from racing the first one.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/veil-backend/internal/config"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_broker.go github.com/tbourn/veil-backend/internal/broker Publisher,Locker

// EventType names a lifecycle event.
type EventType string

const (
	EventMatchCreated   EventType = "match.created"
	EventMessageCreated EventType = "message.created"
	EventPhaseChanged   EventType = "match.phase_changed"
	EventMatchResolved  EventType = "match.resolved"
)

// Event is the payload published for a match. It never carries message
// content, vote values or participant identities.
type Event struct {
	Type       EventType `json:"type"`
	MatchID    string    `json:"match_id"`
	At         time.Time `json:"at"`
	Phase      string    `json:"phase,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	SenderNick string    `json:"sender_nick,omitempty"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Locker grants short-lived exclusive leases on a key. ok is false when the
// key is already held by someone else.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

// Channel returns the pub/sub channel for a match.
func Channel(matchID string) string { return "veil:match:" + matchID }

// Connect creates a redis client from cfg and pings it.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return cli, nil
}

// NopPublisher drops every event. It is used when redis is not configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "veil:lock:"

// Config holds the redis client shared by the publisher and the locker.
type Config struct {
	RedisClient *redis.Client
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}
	if c.RedisClient == nil {
		return errors.New("redis client cannot be nil")
	}
	return nil
}

// RedisPublisher publishes events as JSON on the match channel.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher returns a publisher bound to cfg.RedisClient.
func NewRedisPublisher(cfg *Config) (*RedisPublisher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &RedisPublisher{client: cfg.RedisClient}, nil
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if event.MatchID == "" {
		return errors.New("event match id cannot be empty")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(event.MatchID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// unlockScript deletes the key only if it still holds our token, so an
// expired lease taken over by another holder is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker returns a locker bound to cfg.RedisClient.
func NewRedisLocker(cfg *Config) (*RedisLocker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &RedisLocker{client: cfg.RedisClient}, nil
}

// TryLock implements Locker.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if ttl <= 0 {
		return nil, false, errors.New("lock ttl must be positive")
	}
	full := lockKeyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func(ctx context.Context) error {
		return unlockScript.Run(ctx, l.client, []string{full}, token).Err()
	}
	return unlock, true, nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"legalmeet-agent/internal/domain"
)

const redisKeyPrefix = "conv:"

// Redis stores each conversation as a JSON value with a server-side
// TTL, so expiry also happens without sweeps.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed store. ttl bounds how long an idle
// conversation survives; zero or negative falls back to one hour.
func NewRedis(client *redis.Client, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, errors.New("store: redis client must not be nil")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func redisKey(senderID string) string {
	return redisKeyPrefix + senderID
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, senderID string) (*domain.Conversation, error) {
	raw, err := r.client.Get(ctx, redisKey(senderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: redis get: %w", err)
	}
	var conv domain.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("store: redis decode conversation: %w", err)
	}
	return &conv, nil
}

// Put implements Store. Every write refreshes the key TTL, matching
// the inactivity-window semantics.
func (r *Redis) Put(ctx context.Context, conv *domain.Conversation) error {
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("store: redis encode conversation: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(conv.SenderID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store: redis set: %w", err)
	}
	return nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, senderID string) error {
	if err := r.client.Del(ctx, redisKey(senderID)).Err(); err != nil {
		return fmt.Errorf("store: redis del: %w", err)
	}
	return nil
}

// EvictStale implements Store. Redis expires keys server-side, so the
// sweep has nothing to do.
func (r *Redis) EvictStale(_ context.Context, _ time.Time, _ time.Duration) (int, error) {
	return 0, nil
}

// Close implements Store.
func (r *Redis) Close() error {
	return r.client.Close()
}

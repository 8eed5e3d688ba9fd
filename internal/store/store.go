// Package store holds conversation state keyed by sender. Drivers must
// support safe concurrent Get/Put/Delete/EvictStale; callers serialize
// per-sender read-modify-write cycles themselves.
package store

import (
	"context"
	"time"

	"legalmeet-agent/internal/domain"
)

// Store is the conversation store abstraction.
type Store interface {
	// Get returns the conversation for a sender, or nil if absent.
	Get(ctx context.Context, senderID string) (*domain.Conversation, error)

	// Put inserts or replaces the conversation for its sender.
	Put(ctx context.Context, conv *domain.Conversation) error

	// Delete removes a sender's conversation. Deleting a missing
	// sender is not an error.
	Delete(ctx context.Context, senderID string) error

	// EvictStale removes every conversation whose LastActivity is
	// older than now-ttl and reports how many were removed. Drivers
	// with server-side expiry may report 0.
	EvictStale(ctx context.Context, now time.Time, ttl time.Duration) (int, error)

	// Close releases driver resources.
	Close() error
}

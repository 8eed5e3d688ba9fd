package store

import (
	"context"
	"sync"
	"time"

	"legalmeet-agent/internal/domain"
)

// Memory is a mutex-guarded in-process store. Suitable for a single
// webhook instance; state does not survive restarts.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{conversations: make(map[string]*domain.Conversation)}
}

// Get implements Store. The returned record is a copy so callers can
// mutate it freely before Put.
func (m *Memory) Get(_ context.Context, senderID string) (*domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[senderID]
	if !ok {
		return nil, nil
	}
	cp := *conv
	cp.Turns = append([]domain.Turn(nil), conv.Turns...)
	return &cp, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, conv *domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *conv
	cp.Turns = append([]domain.Turn(nil), conv.Turns...)
	m.conversations[conv.SenderID] = &cp
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, senderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.conversations, senderID)
	return nil
}

// EvictStale implements Store. The write lock is held for the whole
// scan so eviction never interleaves with an in-flight Put.
func (m *Memory) EvictStale(_ context.Context, now time.Time, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-ttl)
	removed := 0
	for id, conv := range m.conversations {
		if conv.LastActivity.Before(cutoff) {
			delete(m.conversations, id)
			removed++
		}
	}
	return removed, nil
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conversations = nil
	return nil
}

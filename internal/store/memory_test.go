package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"legalmeet-agent/internal/domain"
)

func TestMemory_GetMissing(t *testing.T) {
	m := NewMemory()
	conv, err := m.Get(context.Background(), "573001234567")
	require.NoError(t, err)
	require.Nil(t, conv)
}

func TestMemory_PutGetReturnsCopy(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	conv := domain.NewConversation("573001234567", now)
	conv.Append(domain.RoleUser, "hola", now)
	require.NoError(t, m.Put(context.Background(), conv))

	got, err := m.Get(context.Background(), "573001234567")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Turns, 1)

	// mutating the returned copy must not leak into the store
	got.Append(domain.RoleAssistant, "mutado", now)
	again, err := m.Get(context.Background(), "573001234567")
	require.NoError(t, err)
	require.Len(t, again.Turns, 1)
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	require.NoError(t, m.Put(context.Background(), domain.NewConversation("a", now)))
	require.NoError(t, m.Delete(context.Background(), "a"))
	require.NoError(t, m.Delete(context.Background(), "missing"))

	conv, err := m.Get(context.Background(), "a")
	require.NoError(t, err)
	require.Nil(t, conv)
}

func TestMemory_EvictStaleBoundary(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	ttl := time.Hour

	require.NoError(t, m.Put(context.Background(), domain.NewConversation("stale", now.Add(-ttl-time.Second))))
	require.NoError(t, m.Put(context.Background(), domain.NewConversation("fresh", now.Add(-ttl+time.Second))))

	removed, err := m.EvictStale(context.Background(), now, ttl)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	stale, err := m.Get(context.Background(), "stale")
	require.NoError(t, err)
	require.Nil(t, stale)
	fresh, err := m.Get(context.Background(), "fresh")
	require.NoError(t, err)
	require.NotNil(t, fresh)
}

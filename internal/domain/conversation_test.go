package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUserTurnCount_IgnoresAssistantTurns(t *testing.T) {
	now := time.Now()
	conv := NewConversation("573001234567", now)
	conv.Append(RoleUser, "hola", now)
	conv.Append(RoleAssistant, "hola, ¿en qué te ayudo?", now)
	conv.Append(RoleUser, "tengo un problema laboral", now)

	require.Equal(t, 2, conv.UserTurnCount())
	require.Len(t, conv.Turns, 3)
}

func TestAppend_RefreshesLastActivity(t *testing.T) {
	start := time.Now()
	conv := NewConversation("573001234567", start)

	later := start.Add(10 * time.Minute)
	conv.Append(RoleUser, "hola", later)
	require.Equal(t, later, conv.LastActivity)
}

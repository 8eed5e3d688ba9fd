package domain

import "time"

// Turn roles. Transcripts only ever contain these two.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single transcript entry. The JSON shape doubles as the
// message format sent to the chat-completion API.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Conversation is the per-sender record accumulated across inbound
// messages. HandoffSent makes the at-most-once handoff explicit instead
// of being inferred from message text, and LastActivity is stamped on
// every appended turn so stale records can actually be evicted.
type Conversation struct {
	SenderID     string    `json:"sender_id"`
	Turns        []Turn    `json:"turns"`
	HandoffSent  bool      `json:"handoff_sent"`
	LastActivity time.Time `json:"last_activity"`
}

// NewConversation creates an empty record for a sender.
func NewConversation(senderID string, now time.Time) *Conversation {
	return &Conversation{
		SenderID:     senderID,
		LastActivity: now,
	}
}

// Append adds a turn and refreshes the activity stamp.
func (c *Conversation) Append(role, content string, now time.Time) {
	c.Turns = append(c.Turns, Turn{Role: role, Content: content, Timestamp: now})
	c.LastActivity = now
}

// UserTurnCount counts turns with the user role, independent of
// assistant turns. This is the quantity the handoff decision reads.
func (c *Conversation) UserTurnCount() int {
	n := 0
	for _, t := range c.Turns {
		if t.Role == RoleUser {
			n++
		}
	}
	return n
}

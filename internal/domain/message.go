package domain

// Inbound message types as reported by the messaging platform.
const (
	MessageTypeText  = "text"
	MessageTypeAudio = "audio"
)

// InboundMessage is one webhook event, already stripped of the
// platform's envelope nesting.
type InboundMessage struct {
	SenderID string
	Type     string
	Text     string // set when Type == text
	AudioID  string // media id, set when Type == audio
}

// OutboundMessage is a single reply to push through the transport.
type OutboundMessage struct {
	To   string
	Body string
}

// Package webhook understands the WhatsApp Business webhook surface:
// the GET verification handshake and the nested POST event envelope.
package webhook

import (
	"encoding/json"
	"fmt"

	"legalmeet-agent/internal/domain"
)

// DefaultVerifyToken is used when no verification token is configured.
const DefaultVerifyToken = "legalmeet_verify_2024"

// Envelope mirrors the platform's nested event body. Only the fields
// the gateway reads are declared.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	Changes []change `json:"changes"`
}

type change struct {
	Value value `json:"value"`
}

type value struct {
	Messages []message `json:"messages"`
}

type message struct {
	From  string        `json:"from"`
	Type  string        `json:"type"`
	Text  *textPayload  `json:"text,omitempty"`
	Audio *audioPayload `json:"audio,omitempty"`
}

type textPayload struct {
	Body string `json:"body"`
}

type audioPayload struct {
	ID string `json:"id"`
}

// ParseEvent extracts the first inbound message from a webhook body.
// Status updates and other message-free events return (nil, nil): the
// platform still expects a 200 for those.
func ParseEvent(body []byte) (*domain.InboundMessage, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("webhook: decode event body: %w", err)
	}
	if env.Object != "whatsapp_business_account" {
		return nil, nil
	}
	if len(env.Entry) == 0 || len(env.Entry[0].Changes) == 0 {
		return nil, nil
	}
	msgs := env.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 {
		return nil, nil
	}

	m := msgs[0]
	in := &domain.InboundMessage{
		SenderID: m.From,
		Type:     m.Type,
	}
	if m.Text != nil {
		in.Text = m.Text.Body
	}
	if m.Audio != nil {
		in.AudioID = m.Audio.ID
	}
	return in, nil
}

// Verify implements the subscription handshake: the challenge is echoed
// back only for mode "subscribe" with a matching token.
func Verify(mode, token, challenge, expectedToken string) (string, bool) {
	if mode == "subscribe" && token != "" && token == expectedToken {
		return challenge, true
	}
	return "", false
}

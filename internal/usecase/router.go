package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"legalmeet-agent/internal/domain"
	"legalmeet-agent/internal/link"
)

// handoffThreshold is the number of user turns after which the
// conversation is classified and handed off to the web intake flow.
const handoffThreshold = 3

// Fixed user-facing replies. Always short, apologetic Spanish; raw
// errors never reach the user.
const (
	replyUnsupported    = "Por ahora solo puedo procesar mensajes de texto y notas de voz. ¿En qué puedo ayudarte? 😊"
	replyAudioUnclear   = "🎤 Lo siento, no pude entender tu nota de voz. ¿Podrías escribir tu consulta? 😊"
	replyTechnicalIssue = "Lo siento, estoy teniendo problemas técnicos en este momento. ¿Podrías intentar de nuevo en unos minutos? 🙏"
)

// ConversationStore is the subset of the store the router consumes.
type ConversationStore interface {
	Get(ctx context.Context, senderID string) (*domain.Conversation, error)
	Put(ctx context.Context, conv *domain.Conversation) error
	EvictStale(ctx context.Context, now time.Time, ttl time.Duration) (int, error)
}

// LLMClient produces assistant replies and case classifications.
type LLMClient interface {
	Chat(ctx context.Context, systemPrompt string, transcript []domain.Turn) (string, error)
	Classify(ctx context.Context, prompt string) (domain.ClassificationResult, error)
}

// MediaDownloader fetches voice-note bytes from the messaging platform.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

// SpeechToText transcribes downloaded audio.
type SpeechToText interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

// Messenger dispatches outbound messages through the transport.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
}

// Router owns the per-sender conversation state machine: NEW until the
// first message, ACTIVE while accumulating turns, HANDED_OFF once the
// classification link has gone out. A handed-off conversation only ever
// gets passthrough replies afterwards.
type Router struct {
	store     ConversationStore
	llm       LLMClient
	media     MediaDownloader
	stt       SpeechToText
	messenger Messenger
	baseURL   string
	logger    *slog.Logger

	mu          sync.Mutex
	senderLocks map[string]*sync.Mutex

	now func() time.Time
}

// NewRouter validates dependencies and returns a ready Router. baseURL
// is where handoff deep links point; empty means the default app URL.
func NewRouter(store ConversationStore, llm LLMClient, media MediaDownloader, stt SpeechToText, messenger Messenger, baseURL string, logger *slog.Logger) (*Router, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if messenger == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = link.DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("usecase: invalid base url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:       store,
		llm:         llm,
		media:       media,
		stt:         stt,
		messenger:   messenger,
		baseURL:     baseURL,
		logger:      logger,
		senderLocks: make(map[string]*sync.Mutex),
		now:         time.Now,
	}, nil
}

// senderLock returns the mutex serializing all handling for one sender.
// Two senders always proceed concurrently; two messages from the same
// sender never do, so the user-turn count cannot be double-counted.
func (r *Router) senderLock(senderID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.senderLocks[senderID]
	if !ok {
		l = &sync.Mutex{}
		r.senderLocks[senderID] = l
	}
	return l
}

// HandleInbound routes one inbound message and returns the outbound
// messages it dispatched, in order. Collaborator failures are absorbed
// into apology replies; only invalid input or store failures surface as
// errors.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) ([]domain.OutboundMessage, error) {
	if strings.TrimSpace(msg.SenderID) == "" {
		return nil, newError(ErrorInvalidInput, "empty_sender", nil)
	}

	lock := r.senderLock(msg.SenderID)
	lock.Lock()
	defer lock.Unlock()

	var text string
	switch msg.Type {
	case domain.MessageTypeText:
		text = strings.TrimSpace(msg.Text)
		if text == "" {
			return r.dispatch(ctx, msg.SenderID, replyUnsupported), nil
		}
	case domain.MessageTypeAudio:
		transcribed, err := r.transcribeAudio(ctx, msg.AudioID)
		if err != nil {
			r.logger.Warn("audio transcription failed", "sender", msg.SenderID, "err", err)
			return r.dispatch(ctx, msg.SenderID, replyAudioUnclear), nil
		}
		text = strings.TrimSpace(transcribed)
		if text == "" {
			return r.dispatch(ctx, msg.SenderID, replyAudioUnclear), nil
		}
	default:
		return r.dispatch(ctx, msg.SenderID, replyUnsupported), nil
	}

	return r.respond(ctx, msg.SenderID, text)
}

// respond appends the user turn, picks handoff vs passthrough, appends
// the assistant turn, persists, and dispatches.
func (r *Router) respond(ctx context.Context, senderID, text string) ([]domain.OutboundMessage, error) {
	conv, err := r.store.Get(ctx, senderID)
	if err != nil {
		return nil, newError(ErrorInternal, "store_get_error", err)
	}
	now := r.now()
	if conv == nil {
		conv = domain.NewConversation(senderID, now)
	}
	conv.Append(domain.RoleUser, text, now)

	var reply string
	if !conv.HandoffSent && conv.UserTurnCount() >= handoffThreshold {
		reply = r.handoffReply(ctx, conv)
		conv.HandoffSent = true
	} else {
		reply = r.passthroughReply(ctx, conv)
	}

	conv.Append(domain.RoleAssistant, reply, r.now())
	if err := r.store.Put(ctx, conv); err != nil {
		return nil, newError(ErrorInternal, "store_put_error", err)
	}

	return r.dispatch(ctx, senderID, reply), nil
}

// handoffReply classifies the transcript and composes the one-time
// message with the deep link. Classification failures fall back to the
// default Civil band rather than surfacing.
func (r *Router) handoffReply(ctx context.Context, conv *domain.Conversation) string {
	result, err := r.llm.Classify(ctx, buildClassificationPrompt(conv.Turns))
	if err != nil {
		r.logger.Warn("classification failed, using default", "sender", conv.SenderID, "err", err)
		result = domain.DefaultClassification()
	}

	appLink, err := link.Build(r.baseURL, link.Params{
		Category:    result.Category,
		Description: result.ShortSummary,
		Phone:       conv.SenderID,
		PriceMin:    result.PriceMin,
		PriceMax:    result.PriceMax,
		UserName:    result.UserName,
		Urgency:     result.Urgency,
	})
	if err != nil {
		// baseURL is validated at construction, so this should not
		// happen; degrade to a passthrough-style apology.
		r.logger.Error("deep link build failed", "sender", conv.SenderID, "err", err)
		return replyTechnicalIssue
	}
	return formatHandoffMessage(result, appLink)
}

func (r *Router) passthroughReply(ctx context.Context, conv *domain.Conversation) string {
	reply, err := r.llm.Chat(ctx, systemPrompt, conv.Turns)
	if err != nil {
		r.logger.Warn("chat completion failed", "sender", conv.SenderID, "err", err)
		return replyTechnicalIssue
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return replyTechnicalIssue
	}
	return reply
}

func (r *Router) transcribeAudio(ctx context.Context, mediaID string) (string, error) {
	if r.media == nil || r.stt == nil {
		return "", errors.New("usecase: audio handling is not configured")
	}
	if strings.TrimSpace(mediaID) == "" {
		return "", errors.New("usecase: audio message without media id")
	}
	audio, _, err := r.media.DownloadMedia(ctx, mediaID)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}
	return r.stt.Transcribe(ctx, mediaID+".ogg", audio)
}

// dispatch sends the reply through the transport. Transport failures
// are logged, not propagated: the returned slice reflects the messages
// handed to the transport in order.
func (r *Router) dispatch(ctx context.Context, to, body string) []domain.OutboundMessage {
	out := domain.OutboundMessage{To: to, Body: body}
	if err := r.messenger.SendText(ctx, to, body); err != nil {
		r.logger.Error("outbound send failed", "to", to, "err", err)
	}
	return []domain.OutboundMessage{out}
}

// EvictStale removes conversations idle longer than ttl. It is not
// called from HandleInbound; deployments wire it to a timer or run it
// around webhook events.
func (r *Router) EvictStale(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	removed, err := r.store.EvictStale(ctx, now, ttl)
	if err != nil {
		return removed, newError(ErrorInternal, "store_evict_error", err)
	}
	if removed > 0 {
		r.logger.Info("evicted stale conversations", "count", removed)
	}
	return removed, nil
}

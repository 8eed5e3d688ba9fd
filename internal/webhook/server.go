package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"legalmeet-agent/internal/domain"
)

// InboundHandler is the router surface the webhook server consumes.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg domain.InboundMessage) ([]domain.OutboundMessage, error)
}

// Server is the net/http adapter used by the standalone deployment.
type Server struct {
	router      InboundHandler
	verifyToken string
	logger      *slog.Logger
}

// NewServer creates the webhook HTTP adapter. An empty verifyToken
// falls back to DefaultVerifyToken.
func NewServer(router InboundHandler, verifyToken string, logger *slog.Logger) (*Server, error) {
	if router == nil {
		return nil, errors.New("webhook: router must not be nil")
	}
	if verifyToken == "" {
		verifyToken = DefaultVerifyToken
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{router: router, verifyToken: verifyToken, logger: logger}, nil
}

// Register wires the webhook route onto the supplied mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", s.handle)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleVerify(w, r)
	case http.MethodPost:
		s.handleEvent(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, statusBody{Status: "error", Message: "method not allowed"})
	}
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := Verify(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), s.verifyToken)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	s.logger.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// handleEvent always answers 200; upstream retries are suppressed by
// reporting failures in the body instead of the status code.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.logger.Error("webhook read body failed", "err", err)
		writeJSON(w, http.StatusOK, statusBody{Status: "error", Message: "read body"})
		return
	}

	msg, err := ParseEvent(body)
	if err != nil {
		s.logger.Error("webhook parse failed", "err", err)
		writeJSON(w, http.StatusOK, statusBody{Status: "error", Message: "malformed event"})
		return
	}
	if msg == nil {
		writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
		return
	}

	if _, err := s.router.HandleInbound(r.Context(), *msg); err != nil {
		s.logger.Error("webhook handling failed", "sender", msg.SenderID, "err", err)
		writeJSON(w, http.StatusOK, statusBody{Status: "error", Message: "processing failed"})
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body statusBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Package handler adapts API Gateway proxy events to the conversation
// router for the Lambda deployment.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"legalmeet-agent/internal/webhook"
)

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Handler serves the WhatsApp webhook behind API Gateway.
type Handler struct {
	router      webhook.InboundHandler
	verifyToken string
	logger      *slog.Logger
}

// NewHandler validates dependencies and returns a Handler. An empty
// verifyToken falls back to webhook.DefaultVerifyToken.
func NewHandler(router webhook.InboundHandler, verifyToken string, logger *slog.Logger) (*Handler, error) {
	if router == nil {
		return nil, errors.New("handler: router must not be nil")
	}
	if verifyToken == "" {
		verifyToken = webhook.DefaultVerifyToken
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{router: router, verifyToken: verifyToken, logger: logger}, nil
}

// Handle is the Lambda entrypoint for both the GET verification
// handshake and POST message events. Every response carries a
// correlation id, reusing the caller's when provided.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corr := correlationID(req.Headers)

	var resp events.APIGatewayProxyResponse
	switch req.HTTPMethod {
	case http.MethodGet:
		resp = h.handleVerify(req)
	case http.MethodPost:
		resp = h.handleEvent(ctx, req, corr)
	default:
		resp = jsonResponse(http.StatusMethodNotAllowed, statusResponse{Status: "error", Message: "method not allowed"})
	}

	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["X-Correlation-Id"] = corr
	return resp, nil
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "x-correlation-id") && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func (h *Handler) handleVerify(req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	q := req.QueryStringParameters
	challenge, ok := webhook.Verify(q["hub.mode"], q["hub.verify_token"], q["hub.challenge"], h.verifyToken)
	if !ok {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusForbidden,
			Body:       "Forbidden",
		}
	}
	h.logger.Info("webhook verified")
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       challenge,
	}
}

// handleEvent always answers 200: the platform retries on non-2xx, and
// a retried message would be double-counted in the transcript.
func (h *Handler) handleEvent(ctx context.Context, req events.APIGatewayProxyRequest, corr string) events.APIGatewayProxyResponse {
	msg, err := webhook.ParseEvent([]byte(req.Body))
	if err != nil {
		h.logger.Error("webhook parse failed", "correlation_id", corr, "err", err)
		return jsonResponse(http.StatusOK, statusResponse{Status: "error", Message: "malformed event"})
	}
	if msg == nil {
		return jsonResponse(http.StatusOK, statusResponse{Status: "ok"})
	}

	if _, err := h.router.HandleInbound(ctx, *msg); err != nil {
		h.logger.Error("webhook handling failed", "correlation_id", corr, "sender", msg.SenderID, "err", err)
		return jsonResponse(http.StatusOK, statusResponse{Status: "error", Message: "processing failed"})
	}
	return jsonResponse(http.StatusOK, statusResponse{Status: "ok"})
}

func jsonResponse(status int, body statusResponse) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"status":"error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(raw),
	}
}

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"legalmeet-agent/internal/domain"
)

type stubRouter struct {
	out  []domain.OutboundMessage
	err  error
	last *domain.InboundMessage
}

func (s *stubRouter) HandleInbound(_ context.Context, msg domain.InboundMessage) ([]domain.OutboundMessage, error) {
	s.last = &msg
	return s.out, s.err
}

func mustServer(t *testing.T, router InboundHandler) *Server {
	t.Helper()
	s, err := NewServer(router, "secret", nil)
	require.NoError(t, err)
	return s
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusBody {
	t.Helper()
	var body statusBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestNewServer_Validates(t *testing.T) {
	_, err := NewServer(nil, "secret", nil)
	require.Error(t, err)
}

func TestServer_VerifyHappyPath(t *testing.T) {
	s := mustServer(t, &stubRouter{})
	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", nil)
	rec := httptest.NewRecorder()
	s.handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "42", rec.Body.String())
}

func TestServer_VerifyForbidden(t *testing.T) {
	s := mustServer(t, &stubRouter{})
	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil)
	rec := httptest.NewRecorder()
	s.handle(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_PostEvent(t *testing.T) {
	router := &stubRouter{}
	s := mustServer(t, router)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textEvent))
	rec := httptest.NewRecorder()
	s.handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeStatus(t, rec).Status)
	require.NotNil(t, router.last)
	require.Equal(t, "573001234567", router.last.SenderID)
}

func TestServer_PostStatusUpdate(t *testing.T) {
	router := &stubRouter{}
	s := mustServer(t, router)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"object":"whatsapp_business_account","entry":[]}`))
	rec := httptest.NewRecorder()
	s.handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeStatus(t, rec).Status)
	require.Nil(t, router.last, "status updates must not reach the router")
}

func TestServer_RouterErrorStillAnswers200(t *testing.T) {
	router := &stubRouter{err: errors.New("boom")}
	s := mustServer(t, router)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textEvent))
	rec := httptest.NewRecorder()
	s.handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "upstream retries are suppressed via the body, not the status")
	require.Equal(t, "error", decodeStatus(t, rec).Status)
}

func TestServer_MalformedBodyStillAnswers200(t *testing.T) {
	s := mustServer(t, &stubRouter{})
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not-json"))
	rec := httptest.NewRecorder()
	s.handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "error", decodeStatus(t, rec).Status)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := mustServer(t, &stubRouter{})
	req := httptest.NewRequest(http.MethodDelete, "/webhook", nil)
	rec := httptest.NewRecorder()
	s.handle(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"legalmeet-agent/internal/domain"
	"legalmeet-agent/internal/integrations/paramstore"
)

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		base string
		path string
		want string
	}{
		{"https://api.openai.com/v1", "/chat/completions", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "/chat/completions", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "/audio/transcriptions", "http://localhost:8080/v1/audio/transcriptions"},
		{"", "/chat/completions", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, endpointURL(tc.base, tc.path), "base=%q", tc.base)
	}
}

func TestNewClient_Validates(t *testing.T) {
	_, err := NewClient(nil, "openai-api-key")
	require.Error(t, err)
	_, err = NewClient(paramstore.Static{}, "  ")
	require.Error(t, err)
}

func chatCompletionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(paramstore.Static{"openai-api-key": "sk-test"}, "openai-api-key", WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c
}

func TestChat_SendsSystemPromptAndTranscript(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, chatCompletionBody("¡Hola! 😊"))
	})

	reply, err := c.Chat(context.Background(), "instrucciones del sistema", []domain.Turn{
		{Role: domain.RoleUser, Content: "hola"},
		{Role: domain.RoleAssistant, Content: "buenas"},
		{Role: domain.RoleUser, Content: "necesito ayuda"},
	})
	require.NoError(t, err)
	require.Equal(t, "¡Hola! 😊", reply)

	require.Equal(t, defaultModel, got.Model)
	require.Len(t, got.Messages, 4)
	require.Equal(t, "system", got.Messages[0].Role)
	require.Equal(t, "instrucciones del sistema", got.Messages[0].Content)
	require.Equal(t, "necesito ayuda", got.Messages[3].Content)
	require.Equal(t, chatMaxTokens, got.MaxTokens)
	require.InDelta(t, 0.7, got.Temperature, 0.001)
}

func TestChat_UpstreamStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := c.Chat(context.Background(), "sys", nil)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestClassify_ParsesResult(t *testing.T) {
	payload := `{"categoria":"laboral","descripcion_corta":"Despido sin justa causa","resumen_completo":"Trabajador despedido sin indemnización.","nombre":"Carlos","urgencia":"alta","precio_min":80000,"precio_max":150000}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var got chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, classifyMaxTokens, got.MaxTokens)
		require.InDelta(t, 0.3, got.Temperature, 0.001)
		_, _ = io.WriteString(w, chatCompletionBody(payload))
	})

	result, err := c.Classify(context.Background(), "clasifica esto")
	require.NoError(t, err)
	require.Equal(t, domain.CategoryLaboral, result.Category)
	require.Equal(t, "Despido sin justa causa", result.ShortSummary)
	require.Equal(t, "Carlos", result.UserName)
	require.Equal(t, domain.UrgencyAlta, result.Urgency)
	require.Equal(t, 80000, result.PriceMin)
	require.Equal(t, 150000, result.PriceMax)
}

func TestClassify_FillsMissingPricesFromBand(t *testing.T) {
	payload := `{"categoria":"penal","descripcion_corta":"Denuncia por estafa"}`
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, chatCompletionBody(payload))
	})

	result, err := c.Classify(context.Background(), "clasifica")
	require.NoError(t, err)
	require.Equal(t, 120000, result.PriceMin)
	require.Equal(t, 200000, result.PriceMax)
}

func TestClassify_MalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, chatCompletionBody("Tu caso parece laboral, te recomiendo..."))
	})

	_, err := c.Classify(context.Background(), "clasifica")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode classification")
}

func TestTranscribe_MultipartContract(t *testing.T) {
	var rawBody []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		var err error
		rawBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		_, _ = io.WriteString(w, `{"text":"necesito un abogado"}`)
	})

	text, err := c.Transcribe(context.Background(), "media-1.ogg", []byte("fake-ogg-bytes"))
	require.NoError(t, err)
	require.Equal(t, "necesito un abogado", text)

	body := string(rawBody)
	fileIdx := strings.Index(body, `name="file"`)
	modelIdx := strings.Index(body, `name="model"`)
	langIdx := strings.Index(body, `name="language"`)
	require.GreaterOrEqual(t, fileIdx, 0)
	require.Greater(t, modelIdx, fileIdx, "model field must follow the file part")
	require.Greater(t, langIdx, modelIdx, "language field must follow the model field")
	require.Contains(t, body, whisperModel)
	require.Contains(t, body, `filename="media-1.ogg"`)
	require.Contains(t, body, "fake-ogg-bytes")
}

func TestResolveAPIKey_FetchedOnce(t *testing.T) {
	calls := 0
	getter := countingGetter{calls: &calls, val: "sk-raw"}
	c, err := NewClient(getter, "openai-api-key")
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-raw", key)

	_, _ = c.resolveAPIKey(context.Background())
	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 1, calls, "key must only be fetched once per process lifetime")
}

type countingGetter struct {
	calls *int
	val   string
	err   error
}

func (g countingGetter) GetParameter(_ context.Context, _ string) (string, error) {
	*g.calls++
	return g.val, g.err
}

func TestFetchAPIKey_JSONAndRawForms(t *testing.T) {
	key, err := fetchAPIKey(context.Background(), paramstore.Static{"k": `{"token":"sk-json"}`}, "k")
	require.NoError(t, err)
	require.Equal(t, "sk-json", key)

	key, err = fetchAPIKey(context.Background(), paramstore.Static{"k": "sk-raw"}, "k")
	require.NoError(t, err)
	require.Equal(t, "sk-raw", key)

	_, err = fetchAPIKey(context.Background(), paramstore.Static{"k": `{"token":""}`}, "k")
	require.Error(t, err)

	_, err = fetchAPIKey(context.Background(), paramstore.Static{"k": `{"broken`}, "k")
	require.Error(t, err)
}

func TestFetchAPIKey_GetterError(t *testing.T) {
	_, err := fetchAPIKey(context.Background(), failingGetter{}, "k")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
}

type failingGetter struct{}

func (failingGetter) GetParameter(_ context.Context, name string) (string, error) {
	return "", fmt.Errorf("ssm unavailable: %w", errors.New(name))
}

// Package openai is a focused client for the three OpenAI endpoints the
// gateway needs: chat completions for assistant replies, a second
// completion call for case classification, and Whisper transcription
// for voice notes.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"legalmeet-agent/internal/domain"
	"legalmeet-agent/internal/integrations/paramstore"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	whisperModel   = "whisper-1"

	chatMaxTokens     = 500
	classifyMaxTokens = 300
)

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// transcriptionResponse is the response shape of the Whisper endpoint.
type transcriptionResponse struct {
	Text string `json:"text"`
}

// classificationPayload is the JSON contract the classification prompt
// asks the model to emit.
type classificationPayload struct {
	Categoria        string `json:"categoria"`
	DescripcionCorta string `json:"descripcion_corta"`
	ResumenCompleto  string `json:"resumen_completo"`
	Nombre           string `json:"nombre"`
	Urgencia         string `json:"urgencia"`
	PrecioMin        int    `json:"precio_min"`
	PrecioMax        int    `json:"precio_max"`
}

// tokenPayload is the JSON shape optionally stored in SSM for the API key.
type tokenPayload struct {
	Token string `json:"token"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to an OpenAI-compatible API.
type Client struct {
	baseURL      string
	model        string
	httpClient   *http.Client
	uploadClient *http.Client
	getter       paramstore.Getter
	keyParamName string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if strings.TrimSpace(model) != "" {
			c.model = model
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
		c.uploadClient = httpClient
	}
}

// NewClient creates a Client that resolves its API key through the
// given paramstore.Getter on first use and caches it for the process
// lifetime. keyParamName is the full parameter name holding the key,
// either raw or as JSON {"token": "..."}.
func NewClient(ps paramstore.Getter, keyParamName string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	keyParamName = strings.TrimSpace(keyParamName)
	if keyParamName == "" {
		return nil, errors.New("openai: key parameter name must not be empty")
	}
	c := &Client{
		baseURL:      defaultBaseURL,
		model:        defaultModel,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		uploadClient: &http.Client{Timeout: 30 * time.Second},
		getter:       ps,
		keyParamName: keyParamName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPIKey fetches the key on the first call and returns the
// cached result on every subsequent call within the same process.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = fetchAPIKey(ctx, c.getter, c.keyParamName)
	})
	return c.apiKey, c.keyErr
}

func endpointURL(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + path
}

// Chat sends the system instruction plus the transcript and returns the
// assistant's reply text.
func (c *Client) Chat(ctx context.Context, systemPrompt string, transcript []domain.Turn) (string, error) {
	messages := make([]chatMessage, 0, len(transcript)+1)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	for _, t := range transcript {
		messages = append(messages, chatMessage{Role: t.Role, Content: t.Content})
	}

	raw, err := c.completion(ctx, chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   chatMaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Classify asks the model to categorize the case described by the
// transcript. A malformed model response is returned as an error; the
// caller decides the fallback.
func (c *Client) Classify(ctx context.Context, prompt string) (domain.ClassificationResult, error) {
	raw, err := c.completion(ctx, chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   classifyMaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	var payload classificationPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("openai: decode classification: %w", err)
	}

	category := domain.ParseCategory(payload.Categoria)
	result := domain.ClassificationResult{
		Category:     category,
		ShortSummary: strings.TrimSpace(payload.DescripcionCorta),
		FullSummary:  strings.TrimSpace(payload.ResumenCompleto),
		PriceMin:     payload.PrecioMin,
		PriceMax:     payload.PrecioMax,
		UserName:     strings.TrimSpace(payload.Nombre),
		Urgency:      domain.ParseUrgency(payload.Urgencia),
	}
	if result.ShortSummary == "" {
		return domain.ClassificationResult{}, errors.New("openai: classification missing descripcion_corta")
	}
	if result.PriceMin <= 0 || result.PriceMax <= 0 {
		band := domain.PriceBandFor(category)
		result.PriceMin = band.Min
		result.PriceMax = band.Max
	}
	return result, nil
}

// Transcribe uploads a voice note to the Whisper endpoint. The
// multipart field order (file, model, language) is the external API's
// fixed expectation.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("openai: build multipart: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("openai: write audio part: %w", err)
	}
	if err := w.WriteField("model", whisperModel); err != nil {
		return "", fmt.Errorf("openai: write model field: %w", err)
	}
	if err := w.WriteField("language", "es"); err != nil {
		return "", fmt.Errorf("openai: write language field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("openai: close multipart: %w", err)
	}

	url := endpointURL(c.baseURL, "/audio/transcriptions")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("openai: create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := doJSONRequest(c.uploadClient, req, url)
	if err != nil {
		return "", fmt.Errorf("openai: transcription request failed: %w", err)
	}

	var payload transcriptionResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("openai: decode transcription response: %w", err)
	}
	return payload.Text, nil
}

func (c *Client) completion(ctx context.Context, reqBody chatRequest) (string, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	url := endpointURL(c.baseURL, "/chat/completions")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := doJSONRequest(c.httpClient, req, url)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}

func doJSONRequest(client *http.Client, req *http.Request, url string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchAPIKey(ctx context.Context, getter paramstore.Getter, name string) (string, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch API key: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("openai: unmarshal token parameter as JSON: %w", err)
		}
		if tp.Token == "" {
			return "", errors.New("openai: API token is empty")
		}
		return tp.Token, nil
	}
	if raw == "" {
		return "", errors.New("openai: API token is empty")
	}
	return raw, nil
}

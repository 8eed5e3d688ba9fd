// Package whatsapp is a client for the WhatsApp Business Cloud API:
// outbound text sends plus the two-step media download used for voice
// notes (resolve media id to a signed URL, then fetch the bytes).
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"legalmeet-agent/internal/integrations/paramstore"
)

const defaultBaseURL = "https://graph.facebook.com/v22.0"

// sendRequest is the Cloud API text message payload.
type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// mediaResponse is the media-id lookup response.
type mediaResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// StatusError captures non-2xx Graph API responses.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("whatsapp: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to the WhatsApp Business Cloud API for one phone number.
type Client struct {
	baseURL        string
	phoneNumberID  string
	httpClient     *http.Client
	getter         paramstore.Getter
	tokenParamName string

	tokenOnce sync.Once
	token     string
	tokenErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client. The access token is resolved through the
// paramstore.Getter on first use and cached for the process lifetime.
func NewClient(ps paramstore.Getter, tokenParamName, phoneNumberID string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("whatsapp: paramstore getter must not be nil")
	}
	tokenParamName = strings.TrimSpace(tokenParamName)
	if tokenParamName == "" {
		return nil, errors.New("whatsapp: token parameter name must not be empty")
	}
	phoneNumberID = strings.TrimSpace(phoneNumberID)
	if phoneNumberID == "" {
		return nil, errors.New("whatsapp: phone number id must not be empty")
	}
	c := &Client{
		baseURL:        defaultBaseURL,
		phoneNumberID:  phoneNumberID,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		getter:         ps,
		tokenParamName: tokenParamName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenOnce.Do(func() {
		raw, err := c.getter.GetParameter(ctx, c.tokenParamName)
		if err != nil {
			c.tokenErr = fmt.Errorf("whatsapp: fetch access token: %w", err)
			return
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			c.tokenErr = errors.New("whatsapp: access token is empty")
			return
		}
		c.token = raw
	})
	return c.token, c.tokenErr
}

// SendText pushes one text message to a recipient phone number.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	})
	if err != nil {
		return fmt.Errorf("whatsapp: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(c.baseURL, "/"), c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("whatsapp: create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	if _, err := c.doRequest(req, url); err != nil {
		return fmt.Errorf("whatsapp: send failed: %w", err)
	}
	return nil
}

// DownloadMedia resolves a media id to its signed URL and downloads the
// content. Returns the raw bytes and the reported MIME type.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, "", err
	}

	lookupURL := fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: create media lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	raw, err := c.doRequest(req, lookupURL)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: media lookup failed: %w", err)
	}

	var media mediaResponse
	if err := json.Unmarshal(raw, &media); err != nil {
		return nil, "", fmt.Errorf("whatsapp: decode media lookup response: %w", err)
	}
	if media.URL == "" {
		return nil, "", errors.New("whatsapp: media lookup returned no url")
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, media.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: create media download request: %w", err)
	}
	dlReq.Header.Set("Authorization", "Bearer "+token)

	data, err := c.doRequest(dlReq, media.URL)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: media download failed: %w", err)
	}
	return data, media.MimeType, nil
}

func (c *Client) doRequest(req *http.Request, url string) ([]byte, error) {
	client := c.httpClient
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
		return nil, &StatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

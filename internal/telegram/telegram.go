// Package telegram is a minimal Bot API client covering the single method
// the pipeline needs: posting a photo with a MarkdownV2 caption.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/anthology/autoposter/internal/config"
	"github.com/anthology/autoposter/internal/pkg/httpretry"
)

const apiBase = "https://api.telegram.org"

// Client posts photos to Telegram chats through the Bot API.
type Client struct {
	httpClient httpretry.HTTPDoer
	baseURL    string
	token      string
}

// apiEnvelope is the standard Bot API response wrapper.
type apiEnvelope struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// New creates a Telegram client with retrying transport.
func New(cfg config.TelegramConfig) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 3),
		baseURL:    apiBase,
		token:      cfg.BotToken,
	}
}

// SendPhoto posts a photo with a MarkdownV2 caption to the given chat.
// The caller supplies raw image bytes; captions longer than Telegram's
// 1024-char photo limit are rejected by the API, not trimmed here.
func (c *Client) SendPhoto(ctx context.Context, chatID, caption string, photo []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("chat_id", chatID); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	if err := w.WriteField("caption", caption); err != nil {
		return fmt.Errorf("write caption field: %w", err)
	}
	if err := w.WriteField("parse_mode", "MarkdownV2"); err != nil {
		return fmt.Errorf("write parse_mode field: %w", err)
	}
	part, err := w.CreateFormFile("photo", "post.png")
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(photo); err != nil {
		return fmt.Errorf("write photo bytes: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendPhoto", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return fmt.Errorf("build sendPhoto request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	raw := body.Bytes()
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendPhoto request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read sendPhoto response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("sendPhoto returned status %d with unparseable body", resp.StatusCode)
	}
	if !envelope.OK {
		return fmt.Errorf("sendPhoto rejected: code=%d description=%q", envelope.ErrorCode, envelope.Description)
	}
	return nil
}

// Package imagegen calls the external image-generation webhook that turns
// post text into an illustration.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anthology/autoposter/internal/config"
	"github.com/anthology/autoposter/internal/pkg/httpretry"
)

// Client requests generated images from the configured webhook.
type Client struct {
	httpClient httpretry.HTTPDoer
	webhookURL string
}

// New creates an image-generation client with retrying transport. Image
// generation is slow, so the timeout is longer than for other services.
func New(cfg config.PainterConfig) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 3),
		webhookURL: cfg.WebhookURL,
	}
}

// NewWithClient creates a client over a caller-supplied transport.
func NewWithClient(httpClient httpretry.HTTPDoer, webhookURL string) *Client {
	return &Client{httpClient: httpClient, webhookURL: webhookURL}
}

// Generate posts the text to the webhook and returns the raw image bytes.
func (c *Client) Generate(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("webhook returned an empty image")
	}
	return image, nil
}

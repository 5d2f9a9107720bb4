// Package classifier calls an LLM (AWS Bedrock, Claude) to categorize
// topic/mood/author strings into weighted distributions and to score a
// candidate's diversification against a stored distribution.
// All data stays within AWS - no external API calls.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/anthology/autoposter/internal/config"
	"github.com/anthology/autoposter/internal/store"
)

// Kind selects the prompt family for a classification call.
type Kind string

const (
	KindTopic  Kind = "topic"
	KindMood   Kind = "mood"
	KindAuthor Kind = "author"
)

// Client is a Bedrock-backed classifier.
type Client struct {
	client      *bedrockruntime.Client
	modelID     string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// anthropicMessage is a message in the Bedrock anthropic payload format.
type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	Temperature      float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// New creates a Bedrock classifier from the pipeline configuration.
func New(ctx context.Context, cfg config.ClassifierConfig) (*Client, error) {
	awscfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	c := &Client{
		client:      bedrockruntime.NewFromConfig(awscfg),
		modelID:     cfg.ModelID,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
	c.timeout = cfg.Timeout()

	log.Printf("[Classifier] Initialized with model=%s, region=%s", cfg.ModelID, cfg.Region)
	return c, nil
}

// Categorize groups the given values into weighted categories.
// The returned weights are normalized so they sum approximately to 1.
func (c *Client) Categorize(ctx context.Context, kind Kind, values []string) ([]store.Category, error) {
	if len(values) == 0 {
		return nil, nil
	}

	var payload strings.Builder
	for _, v := range values {
		payload.WriteString("- ")
		payload.WriteString(v)
		payload.WriteString("\n")
	}

	raw, err := c.invoke(ctx, categorizePrompt(kind), payload.String(), 500)
	if err != nil {
		return nil, err
	}

	var decoded map[string][]store.Category
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("classifier: malformed category response: %w", err)
	}
	cats, ok := decoded[categoryKey(kind)]
	if !ok || len(cats) == 0 {
		return nil, fmt.Errorf("classifier: response missing %q", categoryKey(kind))
	}
	return cats, nil
}

// Diversify scores how much a candidate value would diversify the current
// distribution, 1 (saturated) to 10 (novel). Out-of-range replies are
// clamped rather than rejected.
func (c *Client) Diversify(ctx context.Context, kind Kind, current []store.Category, candidate string) (int, error) {
	var payload strings.Builder
	payload.WriteString("Current ")
	payload.WriteString(string(kind))
	payload.WriteString(" distribution:\n")
	for _, cat := range current {
		fmt.Fprintf(&payload, "- %s (weight: %.2f)\n", cat.Label, cat.Weight)
	}
	fmt.Fprintf(&payload, "\nNew %s: %s", kind, candidate)

	raw, err := c.invoke(ctx, diversifyPrompt(kind), payload.String(), 300)
	if err != nil {
		return 0, err
	}

	var decoded struct {
		Score *int `json:"diversification_score"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded.Score == nil {
		return 0, fmt.Errorf("classifier: malformed diversification response")
	}

	score := *decoded.Score
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score, nil
}

// invoke sends one classification request and returns the first JSON
// object found in the model's reply.
func (c *Client) invoke(ctx context.Context, system, payload string, maxTokens int) ([]byte, error) {
	if c.maxTokens > 0 {
		maxTokens = c.maxTokens
	}

	request := anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           system,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: []anthropicContent{{Type: "text", Text: payload}},
			},
		},
		Temperature: c.temperature,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	output, err := c.client.InvokeModel(callCtx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return nil, fmt.Errorf("Bedrock API error: %w", err)
	}

	var response anthropicResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return ExtractJSON(text.String())
}

// ExtractJSON returns the first balanced JSON object in s. Models often
// wrap their JSON in prose or code fences.
func ExtractJSON(s string) ([]byte, error) {
	start := strings.Index(s, "{")
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in classifier reply")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return []byte(s[start : i+1]), nil
				}
			}
		}
	}
	return nil, fmt.Errorf("unbalanced JSON object in classifier reply")
}

func categoryKey(kind Kind) string {
	return string(kind) + "_categories"
}

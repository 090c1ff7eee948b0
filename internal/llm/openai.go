// ABOUTME: OpenAI-compatible chat-completions client over plain HTTP
// ABOUTME: Bounded retry on transient failures, errkind classification of API errors

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/toolgate/internal/config"
	"github.com/2389/toolgate/internal/errkind"
)

const (
	maxRequestRetries = 3
	initialRetryDelay = 500 * time.Millisecond
)

// chatRequest is the wire shape of a chat-completions call.
type chatRequest struct {
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	Tools      []Tool    `json:"tools,omitempty"`
	ToolChoice string    `json:"tool_choice,omitempty"`
	MaxTokens  int       `json:"max_tokens,omitempty"`
}

// chatResponse is the wire shape of a successful completion.
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// OpenAIClient talks to any OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
}

// Statically verify that OpenAIClient implements the Client interface.
var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a configured completion client.
func NewOpenAIClient(cfg config.ModelSettings, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "llm"),
	}
}

// Complete performs one blocking completion call.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, tools []Tool) (*Result, error) {
	req := chatRequest{
		Model:     c.model,
		Messages:  messages,
		Tools:     tools,
		MaxTokens: c.maxTokens,
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling completion request: %w", err)
	}

	body, err := c.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errkind.Wrap(errkind.UpstreamModel, "unmarshaling completion response", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errkind.New(errkind.UpstreamModel, "no choices in completion response")
	}

	msg := resp.Choices[0].Message
	return &Result{Content: msg.Content, ToolCalls: msg.ToolCalls}, nil
}

// doRequest posts the payload, retrying transient failures with doubling
// delay. Client errors are classified and never retried.
func (c *OpenAIClient) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error
	delay := initialRetryDelay

	for attempt := 1; attempt <= maxRequestRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating completion request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errkind.Wrap(errkind.Timeout, "completion request", ctx.Err())
			}
			lastErr = errkind.Wrap(errkind.UpstreamModel, "completion request", err)
			if !c.sleep(ctx, delay) {
				return nil, lastErr
			}
			delay *= 2
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, errkind.Wrap(errkind.UpstreamModel, "reading completion response", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		lastErr = c.classifyStatus(resp.StatusCode, body)
		if !errkind.Recoverable(lastErr) {
			return nil, lastErr
		}

		c.logger.Warn("completion attempt failed",
			"attempt", attempt,
			"status", resp.StatusCode,
		)
		if !c.sleep(ctx, delay) {
			return nil, lastErr
		}
		delay *= 2
	}

	return nil, lastErr
}

// classifyStatus maps an HTTP error status to an error kind.
func (c *OpenAIClient) classifyStatus(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 512 {
		detail = detail[:512]
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errkind.Newf(errkind.Authentication, "model API rejected credentials (status %d)", status)
	case status == http.StatusTooManyRequests:
		return errkind.Newf(errkind.RateLimit, "model API rate limited (status %d)", status)
	case status >= 400 && status < 500:
		return errkind.Newf(errkind.Validation, "model API rejected request (status %d): %s", status, detail)
	default:
		return errkind.Newf(errkind.UpstreamModel, "model API error (status %d): %s", status, detail)
	}
}

// sleep waits for d or until ctx is done; reports false when interrupted.
func (c *OpenAIClient) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

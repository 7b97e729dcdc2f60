// Package llm implements the core's one external dependency: the
// synchronous chat(prompt, model, system) -> text capability that
// §1 specifies at its interface boundary. It satisfies
// llmqueue.Capability.
//
// Grounded on nugget-thane-ai-agent's internal/llm/anthropic.go,
// trimmed to the core's single non-streaming, non-tool-calling call
// shape — the core never needs multi-turn history or tool use, only
// one-shot prompt-in/text-out completions for admin reflection,
// extraction, and agent-triggered synthesis.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/inkwell/core/internal/httpkit"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
	defaultMaxTokens    = 4096
)

// AnthropicClient implements llmqueue.Capability against the
// Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	httpClient *http.Client
}

// NewAnthropicClient builds a client. The response-header timeout is
// generous and the client timeout is disabled entirely — the caller's
// context, not a fixed client-side budget, governs how long a call
// may run, matching §5's "suspension point" framing for LLM calls.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	t := httpkit.NewTransport()
	return &AnthropicClient{
		apiKey: apiKey,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
}

// Chat implements llmqueue.Capability.
func (c *AnthropicClient) Chat(ctx context.Context, prompt, model, system string) (string, error) {
	if model == "" {
		return "", fmt.Errorf("llm: model is required")
	}

	reqBody := anthropicRequest{
		Model:     model,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
		System:    system,
		MaxTokens: defaultMaxTokens,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 4096)
		return "", fmt.Errorf("llm: anthropic API error %d: %s", resp.StatusCode, body)
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// pingTimeout bounds the startup connectivity check in cmd/core.
const pingTimeout = 10 * time.Second

// Ping sends a minimal request to verify the API key and connectivity
// at startup, the same "no dedicated health endpoint" workaround the
// teacher pack uses for this provider.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := c.Chat(ctx, "ping", "claude-3-5-haiku-latest", "")
	return err
}

// Package openai provides the chat-completions client used by the
// grounded-answer endpoint over OpenAI-compatible providers.
package openai

import (
	"context"
	"errors"

	"github.com/hsn0918/netkb/internal/clients/base"
	"github.com/hsn0918/netkb/internal/config"
)

const ServiceName = "llm"

// ErrNoChoices indicates the provider answered 200 with no completions.
var ErrNoChoices = errors.New("openai: provider returned no choices")

// ChatCompleter defines the interface for chat operations.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message, maxTokens int) (string, error)
}

// Client calls POST {baseUrl}/v1/chat/completions with bearer auth.
type Client struct {
	httpClient *base.HTTPClient
	config     config.ServiceConfig
}

var _ ChatCompleter = (*Client)(nil)

// NewClient creates a chat client with the short call timeout.
func NewClient(cfg config.ServiceConfig) *Client {
	return &Client{
		httpClient: base.NewHTTPClient(ServiceName, cfg, base.DefaultTimeout),
		config:     cfg,
	}
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents a chat completion request.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// Choice is one returned completion.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

// Response represents the chat completion response.
type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Complete runs one chat completion and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	req := Request{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	}
	var result Response
	if err := c.httpClient.Post(ctx, "/v1/chat/completions", req, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", base.NewClientError(ServiceName, "POST /v1/chat/completions", ErrNoChoices)
	}
	return result.Choices[0].Message.Content, nil
}

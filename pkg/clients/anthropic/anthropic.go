package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	model          = "claude-3-haiku-20240307"
	maxTokens      = 1024
)

// ErrEmptyCompletion is returned when the API answers without any text block.
var ErrEmptyCompletion = errors.New("empty response from ai")

// Client defines the interface for AI text processing.
type Client interface {
	Complete(ctx context.Context, system string, history []Message) (string, error)
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles accepted by the messages API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type anthropicClient struct {
	httpClient *resty.Client
}

// Option customizes the client.
type Option func(*resty.Client)

// WithBaseURL points the client to another host, mostly for tests.
func WithBaseURL(url string) Option {
	return func(c *resty.Client) { c.SetBaseURL(url) }
}

// NewClient creates a configured Anthropic client.
func NewClient(apiKey string, opts ...Option) Client {
	client := resty.New().
		SetBaseURL(defaultBaseURL).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("content-type", "application/json").
		SetTimeout(15 * time.Second)

	for _, opt := range opts {
		opt(client)
	}

	return &anthropicClient{httpClient: client}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends the conversation and returns the assistant's reply text.
func (c *anthropicClient) Complete(ctx context.Context, system string, history []Message) (string, error) {
	if len(history) == 0 {
		return "", errors.New("history must not be empty")
	}

	reqBody := messageRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  history,
	}

	var respBody messageResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		Post("/v1/messages")

	if err != nil {
		return "", fmt.Errorf("anthropic api call: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("anthropic api error: status %d: %s", resp.StatusCode(), resp.String())
	}

	var b strings.Builder
	for _, block := range respBody.Content {
		if block.Type == "" || block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	reply := strings.TrimSpace(b.String())
	if reply == "" {
		return "", ErrEmptyCompletion
	}
	return reply, nil
}

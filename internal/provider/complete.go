package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"linguacode/internal/obs"
)

const (
	defaultCompleteTimeout = 60 * time.Second
	defaultTemperature     = float32(0.7)
)

// Completer runs chat completions against an OpenAI-compatible endpoint.
type Completer struct {
	client *openai.Client
	model  string
}

// CompleterOption configures the Completer.
type CompleterOption func(*openai.ClientConfig)

// WithCompleteTimeout overrides the per-call timeout.
func WithCompleteTimeout(d time.Duration) CompleterOption {
	return func(cfg *openai.ClientConfig) {
		if d > 0 {
			cfg.HTTPClient = &http.Client{Timeout: d}
		}
	}
}

// NewCompleter constructs a completion client. baseURL points at an
// OpenAI-compatible API root; apiKey and model are required.
func NewCompleter(apiKey, baseURL, model string, opts ...CompleterOption) (*Completer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("provider: completion API key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("provider: completion model is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: defaultCompleteTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Completer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Complete sends one system+user prompt pair and returns the first
// choice's content.
func (c *Completer) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	temp := defaultTemperature
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: &temp,
		MaxTokens:   maxTokens,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	obs.ObserveProviderCall("complete", time.Since(start))
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &Error{Provider: "complete", Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return "", &Error{Provider: "complete", Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Provider: "complete", Message: "no choices in response"}
	}
	return resp.Choices[0].Message.Content, nil
}

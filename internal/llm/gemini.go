package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// GeminiClient implements Client against the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithModel overrides the default model name.
func WithModel(model string) GeminiOption {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) GeminiOption {
	return func(c *GeminiClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewGemini creates a Gemini-backed client. The API key is required.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &UnavailableError{Provider: "gemini", Err: err}
	}

	c := &GeminiClient{
		client: client,
		model:  defaultModel,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete sends a single-turn prompt and returns the model's text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	c.logger.Debug("llm request",
		slog.String("model", c.model),
		slog.Int("prompt_len", len(prompt)),
		slog.Float64("temperature", float64(temperature)))

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return "", &UnavailableError{Provider: "gemini", Err: err}
	}

	// An empty completion is degenerate output from a reachable endpoint,
	// not an outage; it stays an ordinary error so each caller's own
	// recovery (retry, fallback, canned answer) applies.
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty completion")
	}

	c.logger.Debug("llm response", slog.Int("response_len", len(text)))
	return text, nil
}

var _ Client = (*GeminiClient)(nil)

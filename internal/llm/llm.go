package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries one call. An empty Model, nil Temperature or zero
// MaxTokens falls back to the client or provider default; a non-nil
// Temperature, including 0, is always sent.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

type ChatResponse struct {
	Content      string
	Model        string
	FinishReason string
}

// Chunk is one fragment of a streamed reply.
type Chunk struct {
	Content      string
	Model        string
	FinishReason string
}

// Stream is a finite, forward-only sequence of chunks. Recv returns io.EOF
// once the stream has ended normally; any other error means it failed. Close
// must be called when the caller is done with the stream.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

type Client interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest) (Stream, error)
}

// Config selects and configures a provider client.
type Config struct {
	Provider   string
	BaseURL    string
	Token      string
	Model      string
	HTTPClient *http.Client
}

// New builds the client for cfg.Provider; an empty provider means openai.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			Token:      cfg.Token,
			Model:      cfg.Model,
			HTTPClient: cfg.HTTPClient,
		})
	case ProviderAnthropic:
		return NewAnthropicClient(AnthropicConfig{
			BaseURL:    cfg.BaseURL,
			Token:      cfg.Token,
			Model:      cfg.Model,
			HTTPClient: cfg.HTTPClient,
		})
	case ProviderGemini:
		return NewGeminiClient(GeminiConfig{
			BaseURL:    cfg.BaseURL,
			Token:      cfg.Token,
			Model:      cfg.Model,
			HTTPClient: cfg.HTTPClient,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

func resolveModel(fallback, override string) string {
	if strings.TrimSpace(override) == "" {
		return fallback
	}
	return override
}

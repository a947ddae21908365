package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultAnthropicVersion   = "2023-06-01"
	defaultAnthropicMaxTokens = 1024
)

type AnthropicConfig struct {
	BaseURL    string
	Token      string
	Model      string
	Version    string
	MaxTokens  int
	HTTPClient *http.Client
}

type AnthropicClient struct {
	baseURL    string
	token      string
	model      string
	version    string
	maxTokens  int
	httpClient *http.Client
}

func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("anthropic base url is required")
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("anthropic token is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("anthropic model is required")
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = defaultAnthropicVersion
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &AnthropicClient{
		baseURL:    baseURL,
		token:      token,
		model:      model,
		version:    version,
		maxTokens:  maxTokens,
		httpClient: client,
	}, nil
}

func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	httpResp, err := c.post(ctx, c.payload(req, false))
	if err != nil {
		return ChatResponse{}, err
	}
	var resp anthropicChatResponse
	if err := decodeJSON(ProviderAnthropic, httpResp, &resp); err != nil {
		return ChatResponse{}, err
	}
	if resp.Error != nil {
		return ChatResponse{}, callError(ProviderAnthropic, KindServer, errors.New(resp.Error.Message))
	}
	return ChatResponse{
		Content:      flattenAnthropicContent(resp.Content),
		Model:        resp.Model,
		FinishReason: resp.StopReason,
	}, nil
}

func (c *AnthropicClient) ChatStream(ctx context.Context, req ChatRequest) (Stream, error) {
	httpResp, err := c.post(ctx, c.payload(req, true))
	if err != nil {
		return nil, err
	}
	var model string
	return newSSEStream(ProviderAnthropic, httpResp.Body, func(data string) (Chunk, bool, error) {
		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return Chunk{}, false, callError(ProviderAnthropic, KindMalformed, fmt.Errorf("decode stream chunk: %w", err))
		}
		switch event.Type {
		case "error":
			message := "stream error"
			if event.Error != nil {
				message = event.Error.Message
			}
			return Chunk{}, false, callError(ProviderAnthropic, KindStream, errors.New(message))
		case "message_start":
			if event.Message != nil && event.Message.Model != "" {
				model = event.Message.Model
			}
			return Chunk{}, false, nil
		case "message_delta":
			stopReason := event.StopReason
			if event.Delta != nil && event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}
			if stopReason == "" {
				return Chunk{}, false, nil
			}
			return Chunk{Model: model, FinishReason: stopReason}, true, nil
		case "content_block_delta":
			if event.Delta == nil || event.Delta.Text == "" {
				return Chunk{}, false, nil
			}
			return Chunk{Content: event.Delta.Text, Model: model}, true, nil
		default:
			return Chunk{}, false, nil
		}
	}), nil
}

func (c *AnthropicClient) payload(req ChatRequest, stream bool) anthropicChatRequest {
	messages, system := splitAnthropicMessages(req.Messages)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	return anthropicChatRequest{
		Model:       resolveModel(c.model, req.Model),
		Messages:    messages,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

func (c *AnthropicClient) post(ctx context.Context, payload anthropicChatRequest) (*http.Response, error) {
	headers := map[string]string{
		"x-api-key":         c.token,
		"anthropic-version": c.version,
	}
	if payload.Stream {
		headers["Accept"] = "text/event-stream"
	}
	return postJSON(ctx, c.httpClient, ProviderAnthropic, buildAnthropicEndpoint(c.baseURL), headers, payload, readAnthropicError)
}

func buildAnthropicEndpoint(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(base, "/v1") {
		return base + "/messages"
	}
	return base + "/v1/messages"
}

func readAnthropicError(body io.Reader) string {
	var resp anthropicChatResponse
	_ = json.NewDecoder(body).Decode(&resp)
	if resp.Error != nil {
		return resp.Error.Message
	}
	return ""
}

// splitAnthropicMessages moves a leading system turn into the top-level
// system field the messages API expects.
func splitAnthropicMessages(messages []Message) ([]Message, string) {
	if len(messages) == 0 {
		return messages, ""
	}
	first := messages[0]
	if first.Role != "system" {
		return messages, ""
	}
	return messages[1:], first.Content
}

func flattenAnthropicContent(blocks []anthropicContent) string {
	var builder strings.Builder
	for _, block := range blocks {
		if block.Type != "text" {
			continue
		}
		builder.WriteString(block.Text)
	}
	return builder.String()
}

type anthropicChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type anthropicChatResponse struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type anthropicStreamEvent struct {
	Type       string          `json:"type"`
	Message    *anthropicEvent `json:"message,omitempty"`
	Delta      *anthropicDelta `json:"delta,omitempty"`
	StopReason string          `json:"stop_reason,omitempty"`
	Error      *anthropicError `json:"error,omitempty"`
}

type anthropicEvent struct {
	Model string `json:"model"`
}

type anthropicDelta struct {
	Text       string `json:"text"`
	StopReason string `json:"stop_reason,omitempty"`
}

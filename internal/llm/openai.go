package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	BaseURL    string
	Token      string
	Model      string
	HTTPClient *http.Client
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("openai base url is required")
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("openai token is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("openai model is required")
	}
	config := openai.DefaultConfig(token)
	config.BaseURL = normalizeOpenAIBaseURL(baseURL)
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(req))
	if err != nil {
		return ChatResponse{}, wrapOpenAIError(err, KindNetwork)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, callError(ProviderOpenAI, KindMalformed, errors.New("openai response has no choices"))
	}
	return ChatResponse{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

func (c *OpenAIClient) ChatStream(ctx context.Context, req ChatRequest) (Stream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(req))
	if err != nil {
		return nil, wrapOpenAIError(err, KindNetwork)
	}
	return &openAIStream{stream: stream}, nil
}

func (c *OpenAIClient) request(req ChatRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, message := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    message.Role,
			Content: message.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:       resolveModel(c.model, req.Model),
		Messages:    messages,
		Temperature: openAITemperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
}

// openAITemperature maps an explicit 0 to the smallest float32 above it,
// since go-openai drops a zero temperature from the request body.
func openAITemperature(temperature *float64) float32 {
	if temperature == nil {
		return 0
	}
	if *temperature == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(*temperature)
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
	err    error
}

func (s *openAIStream) Recv() (Chunk, error) {
	if s.err != nil {
		return Chunk{}, s.err
	}
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.err = io.EOF
			return Chunk{}, s.err
		}
		if err != nil {
			s.err = wrapOpenAIError(err, KindStream)
			return Chunk{}, s.err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.Delta.Content == "" && choice.FinishReason == "" {
			continue
		}
		return Chunk{
			Content:      choice.Delta.Content,
			Model:        resp.Model,
			FinishReason: string(choice.FinishReason),
		}, nil
	}
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}

// normalizeOpenAIBaseURL appends /v1 to a bare host; any explicit path is kept.
func normalizeOpenAIBaseURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Path != "" {
		return base
	}
	return base + "/v1"
}

// wrapOpenAIError classifies go-openai errors. fallback is used when the
// error carries neither an HTTP status nor a decoding failure.
func wrapOpenAIError(err error, fallback ErrorKind) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return statusError(ProviderOpenAI, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return statusError(ProviderOpenAI, reqErr.HTTPStatusCode, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return callError(ProviderOpenAI, KindMalformed, err)
	}
	return callError(ProviderOpenAI, fallback, err)
}

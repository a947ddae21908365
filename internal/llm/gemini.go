package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

type GeminiConfig struct {
	BaseURL    string
	Token      string
	Model      string
	HTTPClient *http.Client
}

type GeminiClient struct {
	baseURL    string
	token      string
	model      string
	httpClient *http.Client
}

func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("gemini base url is required")
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("gemini token is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("gemini model is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &GeminiClient{
		baseURL:    baseURL,
		token:      token,
		model:      model,
		httpClient: client,
	}, nil
}

func (c *GeminiClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	httpResp, err := c.post(ctx, req, false)
	if err != nil {
		return ChatResponse{}, err
	}
	var resp geminiGenerateContentResponse
	if err := decodeJSON(ProviderGemini, httpResp, &resp); err != nil {
		return ChatResponse{}, err
	}
	if resp.Error != nil {
		return ChatResponse{}, callError(ProviderGemini, KindServer, errors.New(resp.Error.Message))
	}
	if len(resp.Candidates) == 0 {
		return ChatResponse{}, callError(ProviderGemini, KindMalformed, errors.New("gemini response has no candidates"))
	}
	return ChatResponse{
		Content:      flattenGeminiContent(resp.Candidates[0].Content),
		Model:        resp.ModelVersion,
		FinishReason: resp.Candidates[0].FinishReason,
	}, nil
}

func (c *GeminiClient) ChatStream(ctx context.Context, req ChatRequest) (Stream, error) {
	httpResp, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	var modelVersion string
	return newSSEStream(ProviderGemini, httpResp.Body, func(data string) (Chunk, bool, error) {
		var chunk geminiGenerateContentResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return Chunk{}, false, callError(ProviderGemini, KindMalformed, fmt.Errorf("decode stream chunk: %w", err))
		}
		if chunk.Error != nil {
			return Chunk{}, false, callError(ProviderGemini, KindStream, errors.New(chunk.Error.Message))
		}
		if chunk.ModelVersion != "" {
			modelVersion = chunk.ModelVersion
		}
		if len(chunk.Candidates) == 0 {
			return Chunk{}, false, nil
		}
		candidate := chunk.Candidates[0]
		out := Chunk{
			Content:      flattenGeminiContent(candidate.Content),
			Model:        modelVersion,
			FinishReason: candidate.FinishReason,
		}
		return out, out.Content != "" || out.FinishReason != "", nil
	}), nil
}

func (c *GeminiClient) post(ctx context.Context, req ChatRequest, stream bool) (*http.Response, error) {
	contents, system := buildGeminiContents(req.Messages)
	payload := geminiGenerateContentRequest{
		Contents:          contents,
		SystemInstruction: system,
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		payload.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}
	endpoint, err := buildGeminiEndpoint(c.baseURL, resolveModel(c.model, req.Model), stream, c.token)
	if err != nil {
		return nil, callError(ProviderGemini, KindNetwork, err)
	}
	var headers map[string]string
	if stream {
		headers = map[string]string{"Accept": "text/event-stream"}
	}
	return postJSON(ctx, c.httpClient, ProviderGemini, endpoint, headers, payload, readGeminiError)
}

func buildGeminiEndpoint(baseURL, model string, stream bool, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	apiPath := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(apiPath, "/v1") && !strings.HasSuffix(apiPath, "/v1beta") {
		apiPath = path.Join(apiPath, "/v1beta")
	}
	verb := "generateContent"
	if stream {
		verb = "streamGenerateContent"
	}
	u.Path = path.Join(apiPath, "models", fmt.Sprintf("%s:%s", strings.TrimSpace(model), verb))
	query := u.Query()
	query.Set("key", token)
	if stream {
		query.Set("alt", "sse")
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func readGeminiError(body io.Reader) string {
	var resp geminiGenerateContentResponse
	_ = json.NewDecoder(body).Decode(&resp)
	if resp.Error != nil {
		return resp.Error.Message
	}
	return ""
}

// buildGeminiContents maps a leading system turn to systemInstruction and the
// assistant role to "model".
func buildGeminiContents(messages []Message) ([]geminiContent, *geminiSystemInstruction) {
	if len(messages) == 0 {
		return nil, nil
	}
	var system *geminiSystemInstruction
	start := 0
	if messages[0].Role == "system" {
		system = &geminiSystemInstruction{
			Parts: []geminiPart{{Text: messages[0].Content}},
		}
		start = 1
	}
	contents := make([]geminiContent, 0, len(messages)-start)
	for _, message := range messages[start:] {
		role := message.Role
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: message.Content}},
		})
	}
	return contents, system
}

func flattenGeminiContent(content geminiContent) string {
	var builder strings.Builder
	for _, part := range content.Parts {
		builder.WriteString(part.Text)
	}
	return builder.String()
}

type geminiGenerateContentRequest struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig  `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates   []geminiCandidate `json:"candidates"`
	ModelVersion string            `json:"modelVersion,omitempty"`
	Error        *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiError struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

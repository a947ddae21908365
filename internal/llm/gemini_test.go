package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "token" {
			t.Errorf("missing api key query")
		}
		var req geminiGenerateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "be brief" {
			t.Errorf("unexpected system instruction: %+v", req.SystemInstruction)
		}
		if len(req.Contents) != 2 || req.Contents[0].Role != "user" || req.Contents[1].Role != "model" {
			t.Errorf("unexpected contents: %+v", req.Contents)
		}
		if req.GenerationConfig == nil || req.GenerationConfig.MaxOutputTokens != 2048 {
			t.Errorf("unexpected generation config: %+v", req.GenerationConfig)
		} else if req.GenerationConfig.Temperature == nil || *req.GenerationConfig.Temperature != 0.7 {
			t.Errorf("unexpected temperature: %v", req.GenerationConfig.Temperature)
		}
		resp := geminiGenerateContentResponse{
			ModelVersion: "gemini-test",
			Candidates: []geminiCandidate{
				{
					Content: geminiContent{
						Role:  "model",
						Parts: []geminiPart{{Text: "hello"}},
					},
					FinishReason: "STOP",
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewGeminiClient(GeminiConfig{
		BaseURL: server.URL,
		Token:   "token",
		Model:   "gemini-test",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hey"},
		},
		Temperature: float64Ptr(0.7),
		MaxTokens:   2048,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "hello" {
		t.Fatalf("unexpected content: %s", resp.Content)
	}
	if resp.FinishReason != "STOP" {
		t.Fatalf("unexpected finish reason: %s", resp.FinishReason)
	}
	if resp.Model != "gemini-test" {
		t.Fatalf("unexpected model: %s", resp.Model)
	}
}

func TestGeminiChatNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(GeminiConfig{BaseURL: server.URL, Token: "token", Model: "gemini-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if !errors.Is(err, ErrCallFailed) || KindOf(err) != KindMalformed {
		t.Fatalf("expected malformed call failure, got %v", err)
	}
}

func TestGeminiChatQuotaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(GeminiConfig{BaseURL: server.URL, Token: "token", Model: "gemini-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if KindOf(err) != KindQuota {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestGeminiChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:streamGenerateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "token" {
			t.Errorf("missing api key query")
		}
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("expected alt=sse")
		}
		var req geminiGenerateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		chunks := []string{
			`data: {"modelVersion":"gemini-test","candidates":[{"content":{"role":"model","parts":[{"text":"he"}]}}]}` + "\n\n",
			`data: {"candidates":[{"content":{"role":"model","parts":[{"text":"llo"}]},"finishReason":"STOP"}]}` + "\n\n",
		}
		for _, chunk := range chunks {
			_, _ = w.Write([]byte(chunk))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	defer server.Close()

	client, err := NewGeminiClient(GeminiConfig{
		BaseURL: server.URL,
		Token:   "token",
		Model:   "gemini-test",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	stream, err := client.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	content, last, err := drain(t, stream)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if content != "hello" {
		t.Fatalf("unexpected stream content: %s", content)
	}
	if last.FinishReason != "STOP" {
		t.Fatalf("unexpected finish reason: %s", last.FinishReason)
	}
	if last.Model != "gemini-test" {
		t.Fatalf("unexpected model: %s", last.Model)
	}
}

func TestBuildGeminiEndpoint(t *testing.T) {
	endpoint, err := buildGeminiEndpoint("https://example.com/v1", "gemini-pro", false, "k")
	if err != nil {
		t.Fatalf("build endpoint: %v", err)
	}
	if endpoint != "https://example.com/v1/models/gemini-pro:generateContent?key=k" {
		t.Fatalf("unexpected endpoint: %s", endpoint)
	}
	endpoint, err = buildGeminiEndpoint("https://example.com", "gemini-pro", true, "k")
	if err != nil {
		t.Fatalf("build endpoint: %v", err)
	}
	if endpoint != "https://example.com/v1beta/models/gemini-pro:streamGenerateContent?alt=sse&key=k" {
		t.Fatalf("unexpected endpoint: %s", endpoint)
	}
}

func TestGeminiChatSendsZeroTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			GenerationConfig map[string]any `json:"generationConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		temperature, ok := body.GenerationConfig["temperature"]
		if !ok || temperature != 0.0 {
			t.Errorf("expected temperature 0 in request, got %v (present=%v)", temperature, ok)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(GeminiConfig{BaseURL: server.URL, Token: "token", Model: "gemini-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Chat(context.Background(), ChatRequest{
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: float64Ptr(0),
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
}

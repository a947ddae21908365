package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "token" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") != defaultAnthropicVersion {
			t.Errorf("unexpected version header: %q", r.Header.Get("anthropic-version"))
		}
		var req anthropicChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "claude-test" {
			t.Errorf("unexpected model: %s", req.Model)
		}
		if req.System != "be brief" {
			t.Errorf("unexpected system: %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.MaxTokens != 2048 {
			t.Errorf("unexpected max tokens: %d", req.MaxTokens)
		}
		if req.Temperature == nil || *req.Temperature != 0.7 {
			t.Errorf("unexpected temperature: %v", req.Temperature)
		}
		resp := anthropicChatResponse{
			Model: "claude-test",
			Content: []anthropicContent{
				{Type: "text", Text: "hel"},
				{Type: "tool_use"},
				{Type: "text", Text: "lo"},
			},
			StopReason: "end_turn",
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewAnthropicClient(AnthropicConfig{
		BaseURL: server.URL,
		Token:   "token",
		Model:   "claude-test",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
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
	if resp.FinishReason != "end_turn" {
		t.Fatalf("unexpected finish reason: %s", resp.FinishReason)
	}
}

func TestAnthropicChatDefaultsMaxTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.MaxTokens != defaultAnthropicMaxTokens {
			t.Errorf("unexpected max tokens: %d", req.MaxTokens)
		}
		if req.Temperature != nil {
			t.Errorf("temperature should be omitted")
		}
		_, _ = w.Write([]byte(`{"model":"claude-test","content":[{"type":"text","text":"ok"}]}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(AnthropicConfig{BaseURL: server.URL + "/v1", Token: "token", Model: "claude-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}); err != nil {
		t.Fatalf("chat: %v", err)
	}
}

func TestAnthropicChatAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(AnthropicConfig{BaseURL: server.URL, Token: "token", Model: "claude-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected CallError, got %v", err)
	}
	if callErr.Kind != KindAuth || callErr.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected error: %+v", callErr)
	}
	if callErr.Err.Error() != "invalid x-api-key" {
		t.Fatalf("unexpected message: %v", callErr.Err)
	}
}

func TestAnthropicChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req anthropicChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Errorf("expected stream request")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		chunks := []string{
			"event: message_start\n" + `data: {"type":"message_start","message":{"model":"claude-test"}}` + "\n\n",
			"event: ping\n" + `data: {"type":"ping"}` + "\n\n",
			`data: {"type":"content_block_delta","delta":{"text":"he"}}` + "\n\n",
			`data: {"type":"content_block_delta","delta":{"text":"llo"}}` + "\n\n",
			`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"}}` + "\n\n",
			`data: {"type":"message_stop"}` + "\n\n",
		}
		for _, chunk := range chunks {
			_, _ = w.Write([]byte(chunk))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	defer server.Close()

	client, err := NewAnthropicClient(AnthropicConfig{
		BaseURL: server.URL,
		Token:   "token",
		Model:   "claude-test",
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
	if last.FinishReason != "end_turn" {
		t.Fatalf("unexpected finish reason: %s", last.FinishReason)
	}
	if last.Model != "claude-test" {
		t.Fatalf("unexpected model: %s", last.Model)
	}
}

func TestAnthropicChatStreamErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"type":"content_block_delta","delta":{"text":"par"}}` + "\n\n"))
		_, _ = w.Write([]byte(`data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}` + "\n\n"))
		_, _ = w.Write([]byte(`data: {"type":"content_block_delta","delta":{"text":"tial"}}` + "\n\n"))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(AnthropicConfig{BaseURL: server.URL, Token: "token", Model: "claude-test"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	stream, err := client.ChatStream(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	content, _, err := drain(t, stream)
	if KindOf(err) != KindStream {
		t.Fatalf("expected stream error, got %v", err)
	}
	if content != "par" {
		t.Fatalf("unexpected partial content: %q", content)
	}
}

func TestAnthropicChatSendsZeroTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		temperature, ok := body["temperature"]
		if !ok || temperature != 0.0 {
			t.Errorf("expected temperature 0 in request, got %v (present=%v)", temperature, ok)
		}
		_, _ = w.Write([]byte(`{"model":"claude-test","content":[{"type":"text","text":"ok"}]}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(AnthropicConfig{BaseURL: server.URL, Token: "token", Model: "claude-test"})
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

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// errorReader extracts the provider's error message from a non-2xx body.
type errorReader func(body io.Reader) string

// postJSON sends payload and returns the response when the status is 2xx.
// The caller owns the returned body.
func postJSON(ctx context.Context, client *http.Client, provider, endpoint string, headers map[string]string, payload any, readErr errorReader) (*http.Response, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, callError(provider, KindMalformed, fmt.Errorf("marshal request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, callError(provider, KindNetwork, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, callError(provider, KindNetwork, fmt.Errorf("%s request: %w", provider, err))
	}
	if !isSuccess(httpResp.StatusCode) {
		defer httpResp.Body.Close()
		message := readErr(httpResp.Body)
		if message == "" {
			message = http.StatusText(httpResp.StatusCode)
		}
		return nil, statusError(provider, httpResp.StatusCode, errors.New(message))
	}
	return httpResp, nil
}

// decodeJSON reads a whole response body into out.
func decodeJSON(provider string, resp *http.Response, out any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return callError(provider, KindMalformed, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// chunkDecoder turns one SSE data payload into a chunk. emit is false for
// events that carry nothing for the caller.
type chunkDecoder func(data string) (chunk Chunk, emit bool, err error)

// sseStream reads "data:" lines of a server-sent event body.
type sseStream struct {
	provider string
	body     io.ReadCloser
	scanner  *bufio.Scanner
	decode   chunkDecoder
	err      error
}

func newSSEStream(provider string, body io.ReadCloser, decode chunkDecoder) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{
		provider: provider,
		body:     body,
		scanner:  scanner,
		decode:   decode,
	}
}

func (s *sseStream) Recv() (Chunk, error) {
	if s.err != nil {
		return Chunk{}, s.err
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			s.err = io.EOF
			return Chunk{}, s.err
		}
		chunk, emit, err := s.decode(data)
		if err != nil {
			s.err = err
			return Chunk{}, err
		}
		if emit {
			return chunk, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		s.err = callError(s.provider, KindStream, fmt.Errorf("read stream: %w", err))
		return Chunk{}, s.err
	}
	s.err = io.EOF
	return Chunk{}, s.err
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

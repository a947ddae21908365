// Package session runs chat turns against a provider while keeping the
// conversation transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"chatbot-demo/internal/llm"
	"chatbot-demo/internal/transcript"

	"github.com/google/uuid"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
)

type Options struct {
	Client       llm.Client
	Provider     string
	Model        string
	SystemPrompt string
	Temperature  *float64 // nil means DefaultTemperature
	MaxTokens    int
	Logger       *slog.Logger
}

// Session is one conversation with a chat model. It is not safe for
// concurrent use; turns are processed one at a time.
type Session struct {
	id          string
	client      llm.Client
	model       string
	temperature float64
	maxTokens   int
	transcript  *transcript.Transcript
	logger      *slog.Logger
}

func New(opts Options) (*Session, error) {
	if opts.Client == nil {
		return nil, errors.New("session client is required")
	}
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := uuid.NewString()
	attrs := []any{
		slog.String("session_id", id),
		slog.String("provider", opts.Provider),
	}
	// Empty when the client default applies; replies log reply_model.
	if opts.Model != "" {
		attrs = append(attrs, slog.String("model", opts.Model))
	}
	return &Session{
		id:          id,
		client:      opts.Client,
		model:       opts.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
		transcript:  transcript.New(opts.SystemPrompt),
		logger:      logger.With(attrs...),
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

// Chat sends message and records the reply. When the call fails the user
// turn stays in the transcript and the error is returned as is.
func (s *Session) Chat(ctx context.Context, message string) (string, error) {
	s.transcript.AppendUser(message)

	resp, err := s.client.Chat(ctx, s.request())
	if err != nil {
		s.logger.Error("chat request failed",
			slog.Int("turns", s.transcript.Len()),
			slog.String("error", err.Error()))
		return "", err
	}

	s.transcript.AppendAssistant(resp.Content)
	s.logger.Debug("chat completed",
		slog.Int("turns", s.transcript.Len()),
		slog.Int("reply_length", len(resp.Content)),
		slog.String("reply_model", resp.Model),
		slog.String("finish_reason", resp.FinishReason))
	return resp.Content, nil
}

// ChatStream sends message and feeds each streamed fragment to observer,
// which may be nil. The assembled reply is recorded only when the stream
// ends normally; on a stream or observer failure the text received so far
// is returned together with the error.
func (s *Session) ChatStream(ctx context.Context, message string, observer transcript.Observer) (string, error) {
	s.transcript.AppendUser(message)

	stream, err := s.client.ChatStream(ctx, s.request())
	if err != nil {
		s.logger.Error("stream request failed",
			slog.Int("turns", s.transcript.Len()),
			slog.String("error", err.Error()))
		return "", err
	}
	defer stream.Close()

	acc := transcript.NewAccumulator(observer)
	var finishReason, replyModel string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Error("stream interrupted",
				slog.Int("fragments", acc.Fragments()),
				slog.String("error", err.Error()))
			return acc.String(), err
		}
		if chunk.FinishReason != "" {
			finishReason = chunk.FinishReason
		}
		if chunk.Model != "" {
			replyModel = chunk.Model
		}
		if err := acc.Accumulate(chunk.Content); err != nil {
			s.logger.Error("fragment observer failed",
				slog.Int("fragments", acc.Fragments()),
				slog.String("error", err.Error()))
			return acc.String(), fmt.Errorf("stream reply: %w", err)
		}
	}

	reply := acc.String()
	s.transcript.AppendAssistant(reply)
	s.logger.Debug("stream completed",
		slog.Int("turns", s.transcript.Len()),
		slog.Int("fragments", acc.Fragments()),
		slog.Int("reply_length", len(reply)),
		slog.String("reply_model", replyModel),
		slog.String("finish_reason", finishReason))
	return reply, nil
}

// Reset clears the conversation, keeping the system prompt.
func (s *Session) Reset() {
	s.transcript.Reset()
	s.logger.Debug("history cleared", slog.Int("turns", s.transcript.Len()))
}

func (s *Session) History() []transcript.Turn {
	return s.transcript.Snapshot()
}

func (s *Session) MessageCount() int {
	return s.transcript.Len()
}

func (s *Session) request() llm.ChatRequest {
	turns := s.transcript.Snapshot()
	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, llm.Message{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	temperature := s.temperature
	return llm.ChatRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   s.maxTokens,
	}
}

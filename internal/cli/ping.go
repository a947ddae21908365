package cli

import (
	"errors"
	"fmt"
	"io"

	"chatbot-demo/internal/llm"

	"github.com/spf13/cobra"
)

type pingOptions struct {
	Stream bool
}

func newPingCmd(a *app) *cobra.Command {
	opts := &pingOptions{}
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Test LLM connectivity with config or flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(cmd, a, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Stream, "stream", false, "stream response")
	addLLMFlags(cmd)
	return cmd
}

func runPing(cmd *cobra.Command, a *app, opts *pingOptions) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cfg.LLM)
	if err != nil {
		return err
	}

	req := llm.ChatRequest{
		Model:       cfg.LLM.Model,
		Temperature: &cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Messages: []llm.Message{
			{
				Role:    "user",
				Content: "ping",
			},
		},
	}
	out := cmd.OutOrStdout()

	if !opts.Stream {
		resp, err := client.Chat(cmd.Context(), req)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, resp.Content)
		return err
	}

	stream, err := client.ChatStream(cmd.Context(), req)
	if err != nil {
		return err
	}
	defer stream.Close()
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if _, err := fmt.Fprint(out, chunk.Content); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(out)
	return err
}

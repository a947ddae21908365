package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"chatbot-demo/internal/session"
	"chatbot-demo/internal/transcript"

	"github.com/spf13/cobra"
)

type conversationMode struct {
	Name         string
	Short        string
	Title        string
	SystemPrompt string
	Demo         []string
	Stream       bool
}

var (
	chatMode = conversationMode{
		Name:         "chat",
		Short:        "Chat with the model, one full reply per message",
		Title:        "Chat demo",
		SystemPrompt: "You are a friendly, professional AI assistant.",
		Demo: []string{
			"Hello, please introduce yourself.",
			"What areas are you good at?",
			"Thank you!",
		},
	}
	streamMode = conversationMode{
		Name:         "stream",
		Short:        "Chat with the model, printing replies as they stream",
		Title:        "Streaming chat demo",
		SystemPrompt: "You are a friendly, professional AI assistant who is good at telling stories.",
		Demo: []string{
			"Please tell me a short story about courage.",
		},
		Stream: true,
	}
)

type conversationOptions struct {
	InputFile   string
	Interactive bool
}

func newChatCmd(a *app) *cobra.Command {
	return newConversationCmd(a, chatMode)
}

func newStreamCmd(a *app) *cobra.Command {
	return newConversationCmd(a, streamMode)
}

func newConversationCmd(a *app, mode conversationMode) *cobra.Command {
	opts := &conversationOptions{}
	cmd := &cobra.Command{
		Use:   mode.Name + " [message...]",
		Short: mode.Short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversation(cmd, a, mode, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.InputFile, "file", "F", "", "messages file, one per line; use -F- for stdin")
	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "read messages from stdin until /exit")
	cmd.Flags().String("system", mode.SystemPrompt, "system prompt, empty for none")
	addLLMFlags(cmd)
	return cmd
}

func runConversation(cmd *cobra.Command, a *app, mode conversationMode, opts *conversationOptions, args []string) error {
	if opts.Interactive && (opts.InputFile != "" || len(args) > 0) {
		return errors.New("--interactive reads stdin and cannot be combined with messages or -F")
	}
	var messages []string
	if !opts.Interactive {
		var err error
		messages, err = readMessages(args, opts.InputFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if messages == nil {
			messages = mode.Demo
		}
	}

	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cfg.LLM)
	if err != nil {
		return err
	}
	sess, err := session.New(session.Options{
		Client:       client,
		Provider:     cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Temperature:  &cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Interactive {
		return runInteractive(cmd.Context(), cmd.InOrStdin(), out, cmd.ErrOrStderr(), sess, mode.Stream)
	}

	fmt.Fprintf(out, "=== %s ===\n\n", mode.Title)
	for _, message := range messages {
		if err := runTurn(cmd.Context(), out, sess, mode.Stream, message); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(out, "History: %d messages\n", sess.MessageCount())
	return err
}

func runTurn(ctx context.Context, out io.Writer, sess *session.Session, stream bool, message string) error {
	fmt.Fprintf(out, "User: %s\n", message)
	if !stream {
		reply, err := sess.Chat(ctx, message)
		if err != nil {
			return fmt.Errorf("chat request failed: %w", err)
		}
		_, err = fmt.Fprintf(out, "AI: %s\n\n", reply)
		return err
	}

	fmt.Fprint(out, "AI: ")
	_, err := sess.ChatStream(ctx, message, func(fragment string) error {
		_, writeErr := fmt.Fprint(out, fragment)
		return writeErr
	})
	if err != nil {
		fmt.Fprintln(out)
		return fmt.Errorf("stream chat request failed: %w", err)
	}
	_, err = fmt.Fprint(out, "\n\n")
	return err
}

func runInteractive(ctx context.Context, in io.Reader, out, errOut io.Writer, sess *session.Session, stream bool) error {
	fmt.Fprintln(out, "Type a message. Commands: /reset clears the history, /history prints it, /exit quits.")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return printSummary(out, sess)
		case "/reset":
			sess.Reset()
			fmt.Fprintln(out, "History cleared.")
		case "/history":
			printHistory(out, sess.History())
		default:
			if err := runTurn(ctx, out, sess, stream, line); err != nil {
				if ctx.Err() != nil {
					return err
				}
				fmt.Fprintf(errOut, "error: %v\n", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	fmt.Fprintln(out)
	return printSummary(out, sess)
}

func printHistory(out io.Writer, turns []transcript.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(out, "(empty)")
		return
	}
	for i, turn := range turns {
		fmt.Fprintf(out, "[%d] %s: %s\n", i+1, turn.Role, turn.Content)
	}
}

func printSummary(out io.Writer, sess *session.Session) error {
	_, err := fmt.Fprintf(out, "History: %d messages\n", sess.MessageCount())
	return err
}

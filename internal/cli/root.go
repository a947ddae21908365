package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"chatbot-demo/internal/config"
	"chatbot-demo/internal/llm"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Options struct {
	Config    string
	EnvFile   string
	LogLevel  string
	LogFormat string
}

// app carries what every subcommand needs. It replaces package-level viper
// and logger state.
type app struct {
	opts   Options
	viper  *viper.Viper
	logger *slog.Logger
}

func NewRootCmd() *cobra.Command {
	a := &app{viper: config.NewViper()}
	root := &cobra.Command{
		Use:           "chatbot-demo",
		Short:         "chatbot-demo - talk to an OpenAI-compatible chat API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.Config, "config", "", "config file (default: ./chatbot-demo.yaml)")
	flags.StringVar(&a.opts.EnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.StringVar(&a.opts.LogLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVar(&a.opts.LogFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newChatCmd(a))
	root.AddCommand(newStreamCmd(a))
	root.AddCommand(newPingCmd(a))
	return root
}

func (a *app) init(errOut io.Writer) error {
	logger, err := newLogger(errOut, a.opts.LogLevel, a.opts.LogFormat)
	if err != nil {
		return err
	}
	a.logger = logger
	if err := config.LoadDotenv(a.opts.EnvFile); err != nil {
		return err
	}
	return config.ReadFile(a.viper, a.opts.Config)
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q", format)
	}
}

// llmFlags maps command flags onto config keys; a flag wins only when set.
var llmFlags = map[string]string{
	"provider":    "llm.provider",
	"url":         "llm.url",
	"token":       "llm.token",
	"model":       "llm.model",
	"temperature": "llm.temperature",
	"max-tokens":  "llm.max_tokens",
	"system":      "llm.system_prompt",
}

func addLLMFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("provider", "", "llm provider: openai, anthropic, gemini")
	flags.String("url", "", "override base url")
	flags.String("token", "", "override access token")
	flags.String("model", "", "override model name")
	flags.Float64("temperature", config.DefaultTemperature, "sampling temperature")
	flags.Int("max-tokens", config.DefaultMaxTokens, "maximum tokens in a reply")
}

// loadConfig binds the command's flags and loads the validated config.
func (a *app) loadConfig(cmd *cobra.Command) (config.Config, error) {
	for name, key := range llmFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := a.viper.BindPFlag(key, flag); err != nil {
			return config.Config{}, fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return config.Load(a.viper)
}

func newClient(cfg config.LLMConfig) (llm.Client, error) {
	return llm.New(llm.Config{
		Provider: cfg.Provider,
		BaseURL:  cfg.URL,
		Token:    cfg.Token,
		Model:    cfg.Model,
	})
}

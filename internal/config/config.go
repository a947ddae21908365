package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultProvider    = "openai"
	DefaultBaseURL     = "https://api.llmshare.network/v1"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
)

// ErrConfiguration is matched by every validation failure from Load.
var ErrConfiguration = errors.New("configuration error")

// FieldError reports an invalid or missing configuration value.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrConfiguration
}

type Config struct {
	LLM LLMConfig `mapstructure:"llm"`
}

type LLMConfig struct {
	Provider     string  `mapstructure:"provider"`
	URL          string  `mapstructure:"url"`
	Model        string  `mapstructure:"model"`
	Token        string  `mapstructure:"token"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	SystemPrompt string  `mapstructure:"system_prompt"`
}

var envBindings = map[string]string{
	"llm.provider":      "LLM_PROVIDER",
	"llm.url":           "LLM_BASE_URL",
	"llm.model":         "LLM_MODEL",
	"llm.token":         "LLM_API_KEY",
	"llm.temperature":   "LLM_TEMPERATURE",
	"llm.max_tokens":    "LLM_MAX_TOKENS",
	"llm.system_prompt": "LLM_SYSTEM_PROMPT",
}

// NewViper returns a viper instance with defaults and environment bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("llm.provider", DefaultProvider)
	v.SetDefault("llm.url", DefaultBaseURL)
	v.SetDefault("llm.model", DefaultModel)
	v.SetDefault("llm.temperature", DefaultTemperature)
	v.SetDefault("llm.max_tokens", DefaultMaxTokens)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// ReadFile loads configFile, or searches the default locations when it is
// empty. A missing default file is not an error.
func ReadFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("chatbot-demo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/chatbot-demo")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// LoadDotenv exports the variables in path without overriding ones already
// set. A missing file is ignored.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.LLM.Token = strings.TrimSpace(cfg.LLM.Token)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic", "gemini":
	default:
		return &FieldError{Field: "llm.provider", Reason: fmt.Sprintf("unsupported provider %q", c.LLM.Provider)}
	}
	if c.LLM.Token == "" {
		return &FieldError{Field: "llm.token", Reason: "API key is not configured, set LLM_API_KEY"}
	}
	if strings.TrimSpace(c.LLM.URL) == "" {
		return &FieldError{Field: "llm.url", Reason: "base url is required"}
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return &FieldError{Field: "llm.model", Reason: "model is required"}
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return &FieldError{Field: "llm.temperature", Reason: fmt.Sprintf("%v is outside [0, 2]", c.LLM.Temperature)}
	}
	if c.LLM.MaxTokens <= 0 {
		return &FieldError{Field: "llm.max_tokens", Reason: "must be positive"}
	}
	return nil
}

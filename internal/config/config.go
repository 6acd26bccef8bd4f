// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (CONVERSE_* runtime override)
//  2. Config file (~/.converse/config.yaml)
//  3. Defaults
//
// Error handling uses sentinel errors so callers can check with errors.Is().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidWindowSize indicates the memory window size is out of range.
	ErrInvalidWindowSize = errors.New("invalid window size")

	// ErrInvalidMaxRounds indicates the tool-loop round cap is out of range.
	ErrInvalidMaxRounds = errors.New("invalid max rounds")

	// ErrInvalidDatabaseURL indicates the Postgres connection string is empty.
	ErrInvalidDatabaseURL = errors.New("invalid database URL")

	// ErrUnknownSystemPrompt indicates the configured prompt preset does not exist.
	ErrUnknownSystemPrompt = errors.New("unknown system prompt")
)

// Temperature bounds accepted by the model backends we target.
const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
)

// DefaultWindowSize is the conversation memory window in turns.
// The in-memory working set keeps at most 2x this many messages.
const DefaultWindowSize = 6

// DefaultMaxRounds caps the tool-calling rounds within a single turn.
// A misbehaving model re-proposing tools forever must not spin the loop.
const DefaultMaxRounds = 8

// System prompt preset identifiers.
const (
	PromptGeneral = "general_assistant"
	PromptRAG     = "rag_assistant"
	PromptConcise = "concise_assistant"
)

// systemPrompts maps preset id to the full instruction text.
var systemPrompts = map[string]string{
	PromptGeneral: "You are a helpful, creative, and clever assistant. " +
		"Your goal is to provide accurate and engaging responses to a wide variety of questions. " +
		"When you don't know an answer, honestly state that you don't know rather than making up information. " +
		"Maintain a friendly, professional tone and adapt your complexity to the user's level of detail.",
	PromptRAG: "You are a specialized Retrieval-Augmented Generation (RAG) assistant. " +
		"Your task is to answer the user's question strictly using the provided context. " +
		"If the context does not contain the answer, say: 'I'm sorry, I don't have enough information in the provided documents to answer that.' " +
		"Do not use outside knowledge or hallucinate facts. Always cite the specific part of the context you are referencing.",
	PromptConcise: "You are a highly efficient assistant that values the user's time. " +
		"Provide direct, brief, and actionable answers. Avoid conversational filler, introductory phrases, " +
		"or unnecessary conclusions. Use bullet points for lists and keep paragraphs to two sentences maximum. " +
		"Get straight to the point.",
}

// SystemPrompt resolves a preset id to its instruction text.
// An empty or unknown id falls back to the general assistant preset.
func SystemPrompt(id string) string {
	if p, ok := systemPrompts[id]; ok {
		return p
	}
	return systemPrompts[PromptGeneral]
}

// Config stores application configuration.
type Config struct {
	// Model configuration
	ModelName     string  `mapstructure:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature"`
	PromptID      string  `mapstructure:"prompt_id"`

	// Conversation memory
	WindowSize int `mapstructure:"window_size"`

	// Orchestration
	MaxRounds int `mapstructure:"max_rounds"`

	// HTTP server
	ListenAddr string `mapstructure:"listen_addr"`

	// Storage
	DatabaseURL string `mapstructure:"database_url"`
	// DataDir holds local state (knowledge base index). Empty means
	// ~/.converse.
	DataDir string `mapstructure:"data_dir"`

	// Observability (optional; empty disables tracing)
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Environment  string `mapstructure:"environment"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json"`
	LogLevel string `mapstructure:"log_level"`
}

// Load reads configuration from file, environment and defaults.
// A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("model_name", "googleai/gemini-2.5-flash")
	v.SetDefault("embedder_model", "text-embedding-004")
	v.SetDefault("temperature", 0.3)
	v.SetDefault("prompt_id", PromptGeneral)
	v.SetDefault("window_size", DefaultWindowSize)
	v.SetDefault("max_rounds", DefaultMaxRounds)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database_url", "postgres://localhost:5432/converse?sslmode=disable")
	v.SetDefault("data_dir", "")
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("environment", "dev")
	v.SetDefault("log_json", false)
	v.SetDefault("log_level", "info")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".converse"))
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CONVERSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration ranges. Returns a sentinel error on failure.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidModelName)
	}
	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		return fmt.Errorf("%w: %.2f not in [%.1f, %.1f]",
			ErrInvalidTemperature, c.Temperature, MinTemperature, MaxTemperature)
	}
	if c.WindowSize < 1 || c.WindowSize > 500 {
		return fmt.Errorf("%w: %d not in [1, 500]", ErrInvalidWindowSize, c.WindowSize)
	}
	if c.MaxRounds < 1 || c.MaxRounds > 64 {
		return fmt.Errorf("%w: %d not in [1, 64]", ErrInvalidMaxRounds, c.MaxRounds)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return ErrInvalidDatabaseURL
	}
	if _, ok := systemPrompts[c.PromptID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSystemPrompt, c.PromptID)
	}
	return nil
}

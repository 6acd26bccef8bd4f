package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		ModelName:     "googleai/gemini-2.5-flash",
		EmbedderModel: "text-embedding-004",
		Temperature:   0.3,
		PromptID:      PromptGeneral,
		WindowSize:    DefaultWindowSize,
		MaxRounds:     DefaultMaxRounds,
		ListenAddr:    ":8080",
		DatabaseURL:   "postgres://localhost:5432/converse",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"empty model", func(c *Config) { c.ModelName = " " }, ErrInvalidModelName},
		{"empty embedder model", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidModelName},
		{"temperature too high", func(c *Config) { c.Temperature = 1.5 }, ErrInvalidTemperature},
		{"temperature negative", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"zero window", func(c *Config) { c.WindowSize = 0 }, ErrInvalidWindowSize},
		{"zero rounds", func(c *Config) { c.MaxRounds = 0 }, ErrInvalidMaxRounds},
		{"empty database url", func(c *Config) { c.DatabaseURL = "" }, ErrInvalidDatabaseURL},
		{"bad prompt preset", func(c *Config) { c.PromptID = "poet" }, ErrUnknownSystemPrompt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Fatalf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestSystemPrompt(t *testing.T) {
	if got := SystemPrompt(PromptConcise); !strings.Contains(got, "efficient") {
		t.Errorf("SystemPrompt(concise) = %q, want the concise preset", got)
	}
	// Unknown ids fall back to the general preset.
	if got, want := SystemPrompt("nope"), SystemPrompt(PromptGeneral); got != want {
		t.Errorf("SystemPrompt(unknown) = %q, want general preset", got)
	}
	if got, want := SystemPrompt(""), SystemPrompt(PromptGeneral); got != want {
		t.Errorf("SystemPrompt(empty) = %q, want general preset", got)
	}
}

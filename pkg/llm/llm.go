// Package llm wraps chat completion providers behind one small interface.
// The vault uses it to answer questions grounded in retrieved memories.
package llm

import (
	"context"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLM generates an assistant reply for a conversation.
type LLM interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Config selects and configures a chat provider.
type Config struct {
	Backend     string  `yaml:"backend"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// DefaultConfig returns the default OpenAI chat configuration.
func DefaultConfig() Config {
	return Config{
		Backend:     "openai",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// New builds an LLM from the configuration.
func New(cfg Config) (LLM, error) {
	switch cfg.Backend {
	case "openai":
		return NewOpenAI(cfg)
	case "anthropic":
		return NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}

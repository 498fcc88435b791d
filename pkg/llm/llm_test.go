package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFactory(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		want    interface{}
		wantErr bool
	}{
		{"openai", Config{Backend: "openai", Model: "gpt-4o-mini", APIKey: "sk-test"}, &OpenAI{}, false},
		{"openai via base url", Config{Backend: "openai", Model: "llama3", BaseURL: "http://localhost:11434/v1"}, &OpenAI{}, false},
		{"openai without credentials", Config{Backend: "openai", Model: "gpt-4o-mini"}, nil, true},
		{"openai without model", Config{Backend: "openai", APIKey: "sk-test"}, nil, true},
		{"anthropic", Config{Backend: "anthropic", Model: "claude-sonnet-4-0", APIKey: "sk-ant"}, &Anthropic{}, false},
		{"anthropic without key", Config{Backend: "anthropic", Model: "claude-sonnet-4-0"}, nil, true},
		{"unknown backend", Config{Backend: "telegraph"}, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := New(tc.cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tc.want, l)
		})
	}
}

func TestAnthropicDefaultMaxTokens(t *testing.T) {
	l, err := NewAnthropic(Config{Backend: "anthropic", Model: "claude-sonnet-4-0", APIKey: "sk-ant"})
	require.NoError(t, err)
	assert.Equal(t, 1024, l.maxTokens)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "openai", cfg.Backend)
	assert.NotEmpty(t, cfg.Model)
	assert.Positive(t, cfg.MaxTokens)
}

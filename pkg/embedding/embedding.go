// Package embedding turns text into vectors for the semantic memory
// backend. Implementations exist for the OpenAI embeddings API and for a
// local Ollama server, plus a ristretto-backed caching decorator.
package embedding

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config selects and configures an embedder backend.
type Config struct {
	Backend    string `yaml:"backend"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	MaxTokens  int    `yaml:"max_tokens,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	CacheSize  int    `yaml:"cache_size,omitempty"`
}

// DefaultConfig returns the OpenAI small embedding model configuration.
func DefaultConfig() Config {
	return Config{
		Backend:    "openai",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		MaxTokens:  8192,
	}
}

// New builds an embedder from the configuration. When CacheSize is set the
// embedder is wrapped in an in-process cache.
func New(cfg Config) (Embedder, error) {
	var (
		emb Embedder
		err error
	)
	switch cfg.Backend {
	case "openai":
		emb, err = NewOpenAI(cfg)
	case "ollama":
		emb, err = NewOllama(cfg)
	default:
		return nil, fmt.Errorf("unknown embedder backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		return NewCached(emb, int64(cfg.CacheSize))
	}
	return emb, nil
}

// truncate clips each text to roughly maxTokens tokens, using the usual
// four-bytes-per-token estimate. Embedding APIs reject inputs past their
// context window, and a clipped memory still embeds usefully. The cut
// always lands on a rune boundary so the request stays valid UTF-8.
func truncate(texts []string, maxTokens int) []string {
	if maxTokens <= 0 {
		return texts
	}
	limit := maxTokens * 4
	out := make([]string, len(texts))
	for i, t := range texts {
		if len(t) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(t[cut]) {
				cut--
			}
			t = t[:cut]
		}
		out[i] = t
	}
	return out
}

// Package config loads the memvault configuration from YAML, with
// environment overrides for secrets and endpoints.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/memvault/memvault/pkg/embedding"
	"github.com/memvault/memvault/pkg/llm"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/vecdb"
)

// Config is the full application configuration.
type Config struct {
	Memory  *memory.Config `yaml:"memory"`
	LLM     llm.Config     `yaml:"llm"`
	Logging LoggingConfig  `yaml:"logging"`

	// DataDir is where shell dump/load snapshots go by default.
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig configures the shared logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration that works without external services:
// lexical memory, OpenAI chat (pending an api key), info logging.
func Default() *Config {
	return &Config{
		Memory:  memory.DefaultConfig(),
		LLM:     llm.DefaultConfig(),
		Logging: LoggingConfig{Level: "info"},
		DataDir: "./memvault_data",
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv fills secrets and endpoints from MEMVAULT_* variables when the
// file left them empty. Values from the file win.
func (c *Config) applyEnv() {
	if key := os.Getenv("MEMVAULT_OPENAI_API_KEY"); key != "" {
		if c.LLM.Backend == "openai" && c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if emb := c.embedderConfig(); emb != nil && emb.Backend == "openai" && emb.APIKey == "" {
			emb.APIKey = key
		}
	}
	if key := os.Getenv("MEMVAULT_ANTHROPIC_API_KEY"); key != "" {
		if c.LLM.Backend == "anthropic" && c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
	}
	if addr := os.Getenv("MEMVAULT_MILVUS_ADDRESS"); addr != "" {
		if db := c.vectorDBConfig(); db != nil && db.Address == "" {
			db.Address = addr
		}
	}
	if base := os.Getenv("MEMVAULT_OLLAMA_BASE_URL"); base != "" {
		if c.LLM.Backend == "openai" && c.LLM.BaseURL == "" && c.LLM.APIKey == "" {
			c.LLM.BaseURL = base + "/v1"
		}
		if emb := c.embedderConfig(); emb != nil && emb.Backend == "ollama" && emb.BaseURL == "" {
			emb.BaseURL = base
		}
	}
}

func (c *Config) embedderConfig() *embedding.Config {
	if c.Memory == nil || c.Memory.Semantic == nil {
		return nil
	}
	return c.Memory.Semantic.Embedder
}

func (c *Config) vectorDBConfig() *vecdb.MilvusConfig {
	if c.Memory == nil || c.Memory.Semantic == nil {
		return nil
	}
	return c.Memory.Semantic.VectorDB
}

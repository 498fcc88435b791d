package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/memory"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, memory.BackendLexical, cfg.Memory.Backend)
	assert.Equal(t, "openai", cfg.LLM.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "./memvault_data", cfg.DataDir)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, memory.BackendLexical, cfg.Memory.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
memory:
  backend: semantic
  semantic:
    score_threshold: 0.35
    embedder:
      backend: ollama
      model: nomic-embed-text
    vectordb:
      address: milvus.internal:19530
      collection: memories
      dimension: 768
llm:
  backend: anthropic
  model: claude-sonnet-4-0
  temperature: 0.2
logging:
  level: debug
data_dir: /var/lib/memvault
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, memory.BackendSemantic, cfg.Memory.Backend)
	require.NotNil(t, cfg.Memory.Semantic)
	assert.Equal(t, 0.35, cfg.Memory.Semantic.ScoreThreshold)
	require.NotNil(t, cfg.Memory.Semantic.Embedder)
	assert.Equal(t, "ollama", cfg.Memory.Semantic.Embedder.Backend)
	require.NotNil(t, cfg.Memory.Semantic.VectorDB)
	assert.Equal(t, "milvus.internal:19530", cfg.Memory.Semantic.VectorDB.Address)
	assert.Equal(t, 768, cfg.Memory.Semantic.VectorDB.Dimension)

	assert.Equal(t, "anthropic", cfg.LLM.Backend)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/lib/memvault", cfg.DataDir)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "memory: [not: a: mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvFillsOpenAIKey(t *testing.T) {
	t.Setenv("MEMVAULT_OPENAI_API_KEY", "sk-env")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
}

func TestEnvDoesNotOverrideFile(t *testing.T) {
	t.Setenv("MEMVAULT_OPENAI_API_KEY", "sk-env")
	path := writeConfig(t, `
llm:
  backend: openai
  model: gpt-4o-mini
  api_key: sk-file
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.LLM.APIKey)
}

func TestEnvAnthropicKeyOnlyForAnthropicBackend(t *testing.T) {
	t.Setenv("MEMVAULT_ANTHROPIC_API_KEY", "sk-ant-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.LLM.APIKey, "openai backend must not pick up the anthropic key")

	path := writeConfig(t, `
llm:
  backend: anthropic
  model: claude-sonnet-4-0
`)
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-env", cfg.LLM.APIKey)
}

func TestEnvMilvusAddress(t *testing.T) {
	t.Setenv("MEMVAULT_MILVUS_ADDRESS", "milvus.env:19530")
	path := writeConfig(t, `
memory:
  backend: semantic
  semantic:
    embedder:
      backend: ollama
      model: nomic-embed-text
    vectordb:
      collection: memories
      dimension: 768
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "milvus.env:19530", cfg.Memory.Semantic.VectorDB.Address)
}

func TestEnvOllamaBaseURL(t *testing.T) {
	t.Setenv("MEMVAULT_OLLAMA_BASE_URL", "http://ollama.env:11434")
	path := writeConfig(t, `
memory:
  backend: semantic
  semantic:
    embedder:
      backend: ollama
      model: nomic-embed-text
    vectordb:
      address: localhost:19530
      collection: memories
      dimension: 768
llm:
  backend: openai
  model: llama3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://ollama.env:11434", cfg.Memory.Semantic.Embedder.BaseURL)
	// Without an api key the chat client falls back to the local server.
	assert.Equal(t, "http://ollama.env:11434/v1", cfg.LLM.BaseURL)
}

package memory

import (
	"fmt"

	"github.com/memvault/memvault/pkg/embedding"
	"github.com/memvault/memvault/pkg/observability/logging"
	"github.com/memvault/memvault/pkg/vecdb"
)

// Backend selects the ranking backend for a memory store.
type Backend string

const (
	BackendLexical  Backend = "lexical"
	BackendSemantic Backend = "semantic"
)

// Config configures a memory store.
type Config struct {
	// Backend is "lexical" or "semantic". Empty defaults to lexical.
	Backend Backend `yaml:"backend"`

	// Semantic configuration, required when Backend is "semantic".
	Semantic *SemanticConfig `yaml:"semantic,omitempty"`
}

// SemanticConfig configures the semantic backend's collaborators.
type SemanticConfig struct {
	// ScoreThreshold drops search results scoring below it. Zero keeps
	// everything the vector store returns.
	ScoreThreshold float64 `yaml:"score_threshold,omitempty"`

	Embedder *embedding.Config  `yaml:"embedder"`
	VectorDB *vecdb.MilvusConfig `yaml:"vectordb"`
}

// DefaultConfig returns a lexical store configuration, which needs no
// external services.
func DefaultConfig() *Config {
	return &Config{Backend: BackendLexical}
}

// NewStore builds a store from configuration. Invalid configuration fails
// here with ErrConfig; nothing is deferred to first use. The returned
// store still needs Open before serving requests.
func NewStore(config *Config) (Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Backend {
	case BackendLexical, "":
		logging.Infof("memory: using lexical backend")
		return NewLexicalStore(), nil

	case BackendSemantic:
		logging.Infof("memory: using semantic backend")
		if config.Semantic == nil {
			return nil, fmt.Errorf("%w: semantic backend requires a semantic section", ErrConfig)
		}
		if config.Semantic.Embedder == nil {
			return nil, fmt.Errorf("%w: semantic backend requires an embedder", ErrConfig)
		}
		if config.Semantic.VectorDB == nil {
			return nil, fmt.Errorf("%w: semantic backend requires a vectordb", ErrConfig)
		}
		embedder, err := embedding.New(*config.Semantic.Embedder)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		db, err := vecdb.NewMilvus(*config.Semantic.VectorDB)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		return NewSemanticStore(embedder, db, WithScoreThreshold(config.Semantic.ScoreThreshold))

	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrConfig, config.Backend)
	}
}

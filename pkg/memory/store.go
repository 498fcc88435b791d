package memory

import (
	"context"
	"errors"
)

// Error taxonomy shared by all backends. Callers branch with errors.Is.
var (
	// ErrInvalidItem marks an item that failed validation (bad id, empty text).
	ErrInvalidItem = errors.New("invalid memory item")

	// ErrUnavailable marks a failure reaching an external dependency
	// (vector store, embedding service). It always wraps the cause.
	ErrUnavailable = errors.New("memory backend unavailable")

	// ErrSnapshot marks a snapshot file that could not be parsed.
	ErrSnapshot = errors.New("malformed memory snapshot")

	// ErrSnapshotFormat marks a snapshot written by the other backend.
	ErrSnapshotFormat = errors.New("unsupported memory snapshot format")

	// ErrConfig marks an invalid configuration detected at construction.
	ErrConfig = errors.New("invalid memory configuration")
)

// Store is the uniform contract over the ranking backends.
//
// Implementations:
//   - LexicalStore: in-process BM25 term ranking (lexical_store.go)
//   - SemanticStore: embedding similarity over a vector store (semantic_store.go)
//
// Lifecycle: construct (configuration is validated immediately), Open once
// before use, Close when done. Open is idempotent.
//
// Concurrency: a Store assumes a single logical caller at a time and does
// no internal locking. Callers needing concurrent access serialize
// externally.
//
// Failures are never retried internally; transient-error policy belongs to
// the caller.
type Store interface {
	// Open prepares the backend for use (network dial, collection
	// bootstrap). The lexical backend treats this as a no-op.
	Open(ctx context.Context) error

	// Add stores the given items and returns the ids actually added, in
	// submission order. Items whose id already exists are silently
	// skipped. Missing ids and timestamps are filled in; an item that
	// fails validation aborts the whole call with ErrInvalidItem.
	Add(ctx context.Context, items []*Item) ([]string, error)

	// Search returns up to topK items ranked by descending relevance to
	// the query. The filter, when non-nil, restricts results to items
	// whose metadata matches every entry. An empty query or an empty
	// store yields no results.
	Search(ctx context.Context, query string, topK int, filter map[string]string) ([]SearchResult, error)

	// Get returns the item with the given id, or (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Item, error)

	// GetAll returns every stored item.
	GetAll(ctx context.Context) ([]*Item, error)

	// Update replaces the text and metadata of an existing item. The id
	// and creation timestamp are preserved; the update timestamp
	// advances. Updating an unknown id logs a warning and is a no-op.
	Update(ctx context.Context, id string, item *Item) error

	// Delete removes the items with the given ids. Unknown ids are
	// ignored.
	Delete(ctx context.Context, ids []string) error

	// DeleteAll removes every stored item.
	DeleteAll(ctx context.Context) error

	// Count returns the number of stored items.
	Count(ctx context.Context) (int, error)

	// Dump writes a snapshot of the store into the given directory.
	Dump(ctx context.Context, dir string) error

	// Load merges a snapshot from the given directory into the store.
	// Already-present ids are skipped; a missing snapshot file is not an
	// error. A snapshot written by the other backend fails with
	// ErrSnapshotFormat.
	Load(ctx context.Context, dir string) error

	// Close releases backend resources.
	Close() error
}

// Package vecdb abstracts the vector database used by the semantic memory
// backend. A VectorStore holds points: id, embedding vector, and an
// arbitrary JSON payload.
package vecdb

import "context"

// Point is one stored vector with its payload. Score is populated only on
// search results, where higher means more similar.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
	Score   float64
}

// VectorStore is the contract the semantic memory backend programs
// against. Implementations must treat Open as idempotent.
type VectorStore interface {
	// Open dials the database and bootstraps the collection.
	Open(ctx context.Context) error

	// Upsert writes the given points, replacing any with the same id.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to topK points nearest to the vector, most
	// similar first. The filter restricts results to points whose
	// payload metadata matches every entry.
	Search(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Point, error)

	// Get returns the point with the given id, or (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Point, error)

	// GetAll returns every stored point, paginating internally.
	GetAll(ctx context.Context) ([]Point, error)

	// Delete removes the points with the given ids.
	Delete(ctx context.Context, ids []string) error

	// DeleteAll removes every stored point.
	DeleteAll(ctx context.Context) error

	// Count returns the number of stored points.
	Count(ctx context.Context) (int64, error)

	// Close releases the connection.
	Close() error
}

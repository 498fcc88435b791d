package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Mock is a deterministic embedder for tests and offline runs. Vectors
// are derived from an FNV hash of the text, so equal texts always embed
// equally and different texts almost never collide.
type Mock struct {
	Dim   int
	Calls int
}

var _ Embedder = (*Mock)(nil)

// NewMock returns a mock embedder producing unit vectors of dim elements.
func NewMock(dim int) *Mock {
	return &Mock{Dim: dim}
}

// Embed returns one deterministic unit vector per text.
func (m *Mock) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.Calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vector(text)
	}
	return out, nil
}

func (m *Mock) vector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.Dim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed)) / float32(math.MaxInt64)
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

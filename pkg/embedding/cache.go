package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Cached decorates an Embedder with an in-process ristretto cache keyed by
// text. Memory texts repeat often across add, update, and search calls;
// caching saves the round trip for anything seen before.
type Cached struct {
	inner Embedder
	cache *ristretto.Cache
}

var _ Embedder = (*Cached)(nil)

// NewCached wraps inner with a cache holding up to maxEntries vectors.
func NewCached(inner Embedder, maxEntries int64) (*Cached, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("embedding cache size must be positive, got %d", maxEntries)
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// Each entry costs exactly 1. Without this ristretto also charges
		// its internal per-entry overhead against MaxCost, which shrinks
		// the effective capacity to almost nothing.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build embedding cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Embed serves hits from the cache and forwards only the misses, in one
// batched call.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var (
		missTexts   []string
		missIndices []int
	)
	for i, text := range texts {
		if val, ok := c.cache.Get(text); ok {
			if vec, ok := val.([]float32); ok {
				vectors[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIndices = append(missIndices, i)
	}
	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: got %d vectors for %d inputs", len(fresh), len(missTexts))
	}
	for j, vec := range fresh {
		vectors[missIndices[j]] = vec
		c.cache.Set(missTexts[j], vec, 1)
	}
	// Wait so back-to-back calls with the same text hit the cache.
	c.cache.Wait()
	return vectors, nil
}

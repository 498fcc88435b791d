package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/memvault/memvault/pkg/embedding"
	"github.com/memvault/memvault/pkg/observability/logging"
	"github.com/memvault/memvault/pkg/vecdb"
)

// SemanticStore ranks memories by embedding similarity. Texts are embedded
// through the configured Embedder and stored as points in a VectorStore;
// the item itself travels in the point payload so no second database is
// needed.
//
// Failures of either external dependency surface as ErrUnavailable
// wrapping the cause.
type SemanticStore struct {
	embedder embedding.Embedder
	db       vecdb.VectorStore

	// scoreThreshold drops results scoring below it. Zero means no floor.
	scoreThreshold float64
}

var _ Store = (*SemanticStore)(nil)

// SemanticOption customizes a SemanticStore.
type SemanticOption func(*SemanticStore)

// WithScoreThreshold sets the minimum similarity score a search result
// must reach.
func WithScoreThreshold(threshold float64) SemanticOption {
	return func(s *SemanticStore) { s.scoreThreshold = threshold }
}

// NewSemanticStore builds a semantic store over the given collaborators.
func NewSemanticStore(embedder embedding.Embedder, db vecdb.VectorStore, opts ...SemanticOption) (*SemanticStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: semantic store requires an embedder", ErrConfig)
	}
	if db == nil {
		return nil, fmt.Errorf("%w: semantic store requires a vector store", ErrConfig)
	}
	s := &SemanticStore{embedder: embedder, db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open prepares the underlying vector store.
func (s *SemanticStore) Open(ctx context.Context) error {
	if err := s.db.Open(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Close releases the vector store connection.
func (s *SemanticStore) Close() error {
	return s.db.Close()
}

// Add embeds all new items in a single Embedder call and upserts them.
func (s *SemanticStore) Add(ctx context.Context, items []*Item) ([]string, error) {
	fresh := make([]*Item, 0, len(items))
	for _, item := range items {
		item.normalize()
		if err := item.Validate(); err != nil {
			return nil, err
		}
		existing, err := s.db.Get(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if existing != nil {
			logging.Debugf("semantic store: skipping duplicate id %s", item.ID)
			continue
		}
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		return []string{}, nil
	}

	texts := make([]string, len(fresh))
	for i, item := range fresh {
		texts[i] = item.Memory
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	points := make([]vecdb.Point, len(fresh))
	added := make([]string, len(fresh))
	for i, item := range fresh {
		payload, err := itemToPayload(item)
		if err != nil {
			return nil, err
		}
		points[i] = vecdb.Point{ID: item.ID, Vector: vectors[i], Payload: payload}
		added[i] = item.ID
	}
	if err := s.db.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return added, nil
}

// Search embeds the query and returns the topK most similar items.
func (s *SemanticStore) Search(ctx context.Context, query string, topK int, filter map[string]string) ([]SearchResult, error) {
	if topK <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	points, err := s.db.Search(ctx, vectors[0], topK, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		if s.scoreThreshold > 0 && p.Score < s.scoreThreshold {
			continue
		}
		item, err := payloadToItem(p.Payload)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Item: item, Score: p.Score})
	}
	// Stores usually return nearest-first, but the ordering contract is
	// ours, so enforce it.
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get returns the item with the given id, or (nil, nil) when absent.
func (s *SemanticStore) Get(ctx context.Context, id string) (*Item, error) {
	point, err := s.db.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if point == nil {
		return nil, nil
	}
	return payloadToItem(point.Payload)
}

// GetAll returns every stored item.
func (s *SemanticStore) GetAll(ctx context.Context) ([]*Item, error) {
	points, err := s.db.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	items := make([]*Item, 0, len(points))
	for _, p := range points {
		item, err := payloadToItem(p.Payload)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Update re-embeds the new text and replaces the stored point.
func (s *SemanticStore) Update(ctx context.Context, id string, item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", ErrInvalidItem)
	}
	point, err := s.db.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if point == nil {
		logging.Warnf("semantic store: update of unknown id %s ignored", id)
		return nil
	}
	existing, err := payloadToItem(point.Payload)
	if err != nil {
		return err
	}

	next := item.clone()
	next.ID = id
	next.Metadata.CreatedAt = existing.Metadata.CreatedAt
	next.Metadata.UpdatedAt = bumpTimestamp(existing.Metadata.UpdatedAt)
	if err := next.Validate(); err != nil {
		return err
	}

	vectors, err := s.embedder.Embed(ctx, []string{next.Memory})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	payload, err := itemToPayload(next)
	if err != nil {
		return err
	}
	if err := s.db.Upsert(ctx, []vecdb.Point{{ID: id, Vector: vectors[0], Payload: payload}}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the items with the given ids, ignoring unknown ones.
func (s *SemanticStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.Delete(ctx, ids); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// DeleteAll removes every stored item.
func (s *SemanticStore) DeleteAll(ctx context.Context) error {
	if err := s.db.DeleteAll(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Count returns the number of stored items.
func (s *SemanticStore) Count(ctx context.Context) (int, error) {
	n, err := s.db.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return int(n), nil
}

// Dump writes all points, vectors included, so Load never re-embeds.
func (s *SemanticStore) Dump(ctx context.Context, dir string) error {
	points, err := s.db.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	records := make([]vectorRecord, len(points))
	for i, p := range points {
		records[i] = vectorRecord{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	if err := writeSnapshot(dir, records); err != nil {
		return err
	}
	logging.Infof("semantic store: dumped %d memories to %s", len(records), dir)
	return nil
}

// Load merges a snapshot from dir, skipping ids already present.
func (s *SemanticStore) Load(ctx context.Context, dir string) error {
	data, found, err := readSnapshot(dir)
	if err != nil {
		return err
	}
	if !found {
		logging.Warnf("semantic store: no snapshot found in %s", dir)
		return nil
	}
	records, err := decodeVectorSnapshot(data)
	if err != nil {
		return err
	}

	var points []vecdb.Point
	for _, rec := range records {
		existing, err := s.db.Get(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if existing != nil {
			logging.Debugf("semantic store: skipping duplicate id %s", rec.ID)
			continue
		}
		points = append(points, vecdb.Point{ID: rec.ID, Vector: rec.Vector, Payload: rec.Payload})
	}
	if len(points) > 0 {
		if err := s.db.Upsert(ctx, points); err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	logging.Infof("semantic store: loaded %d memories from %s", len(points), dir)
	return nil
}

// itemToPayload and payloadToItem convert through JSON so the payload
// stored in the vector database has exactly the item's wire shape.
func itemToPayload(item *Item) (map[string]interface{}, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode item %s: %w", item.ID, err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("encode item %s: %w", item.ID, err)
	}
	return payload, nil
}

func payloadToItem(payload map[string]interface{}) (*Item, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("decode point payload: %w", err)
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode point payload: %w", err)
	}
	return &item, nil
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/memvault/memvault/pkg/observability/logging"
)

// LexicalStore ranks memories by BM25 term overlap, entirely in process.
// It needs no external services: Open and Close are no-ops.
//
// Candidates scoring zero or below never appear in search results, so a
// query sharing no terms with a memory cannot surface it.
type LexicalStore struct {
	items []*Item
	index map[string]int
}

var _ Store = (*LexicalStore)(nil)

// NewLexicalStore creates an empty lexical store.
func NewLexicalStore() *LexicalStore {
	return &LexicalStore{index: make(map[string]int)}
}

// Open implements Store. The lexical backend has nothing to prepare.
func (s *LexicalStore) Open(ctx context.Context) error { return nil }

// Close implements Store.
func (s *LexicalStore) Close() error { return nil }

// Add stores the given items, skipping ids that already exist.
func (s *LexicalStore) Add(ctx context.Context, items []*Item) ([]string, error) {
	added := make([]string, 0, len(items))
	for _, item := range items {
		item.normalize()
		if err := item.Validate(); err != nil {
			return nil, err
		}
		if _, exists := s.index[item.ID]; exists {
			logging.Debugf("lexical store: skipping duplicate id %s", item.ID)
			continue
		}
		s.index[item.ID] = len(s.items)
		s.items = append(s.items, item.clone())
		added = append(added, item.ID)
	}
	return added, nil
}

// Search ranks every stored item with a BM25 model built over the full
// record set and returns the topK highest scorers that pass the filter.
// Ranking always uses the full corpus so a filter changes which results
// appear, never how they score.
func (s *LexicalStore) Search(ctx context.Context, query string, topK int, filter map[string]string) ([]SearchResult, error) {
	if topK <= 0 || strings.TrimSpace(query) == "" || len(s.items) == 0 {
		return nil, nil
	}

	corpus := make([][]string, len(s.items))
	for i, item := range s.items {
		corpus[i] = tokenize(item.Memory)
	}
	scores := newBM25(corpus).scores(tokenize(query))

	results := make([]SearchResult, 0, len(s.items))
	for i, score := range scores {
		if score <= 0 {
			continue
		}
		if filter != nil && !s.items[i].Metadata.Matches(filter) {
			continue
		}
		results = append(results, SearchResult{Item: s.items[i].clone(), Score: score})
	}
	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get returns the item with the given id, or (nil, nil) when absent.
func (s *LexicalStore) Get(ctx context.Context, id string) (*Item, error) {
	if i, ok := s.index[id]; ok {
		return s.items[i].clone(), nil
	}
	return nil, nil
}

// GetAll returns every stored item in insertion order.
func (s *LexicalStore) GetAll(ctx context.Context) ([]*Item, error) {
	out := make([]*Item, len(s.items))
	for i, item := range s.items {
		out[i] = item.clone()
	}
	return out, nil
}

// Update replaces the text and metadata of an existing item.
func (s *LexicalStore) Update(ctx context.Context, id string, item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", ErrInvalidItem)
	}
	i, ok := s.index[id]
	if !ok {
		logging.Warnf("lexical store: update of unknown id %s ignored", id)
		return nil
	}
	existing := s.items[i]

	next := item.clone()
	next.ID = id
	next.Metadata.CreatedAt = existing.Metadata.CreatedAt
	next.Metadata.UpdatedAt = bumpTimestamp(existing.Metadata.UpdatedAt)
	if err := next.Validate(); err != nil {
		return err
	}
	s.items[i] = next
	return nil
}

// bumpTimestamp returns now, nudged forward if the clock has not moved
// since the previous update.
func bumpTimestamp(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}

// Delete removes the items with the given ids, ignoring unknown ones.
func (s *LexicalStore) Delete(ctx context.Context, ids []string) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := s.items[:0]
	for _, item := range s.items {
		if _, gone := drop[item.ID]; gone {
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	s.reindex()
	return nil
}

// DeleteAll removes every stored item.
func (s *LexicalStore) DeleteAll(ctx context.Context) error {
	s.items = nil
	s.index = make(map[string]int)
	return nil
}

// Count returns the number of stored items.
func (s *LexicalStore) Count(ctx context.Context) (int, error) {
	return len(s.items), nil
}

// Dump writes all items as a JSON snapshot into dir.
func (s *LexicalStore) Dump(ctx context.Context, dir string) error {
	items, _ := s.GetAll(ctx)
	if err := writeSnapshot(dir, items); err != nil {
		return err
	}
	logging.Infof("lexical store: dumped %d memories to %s", len(items), dir)
	return nil
}

// Load merges a snapshot from dir, skipping ids already present.
func (s *LexicalStore) Load(ctx context.Context, dir string) error {
	data, found, err := readSnapshot(dir)
	if err != nil {
		return err
	}
	if !found {
		logging.Warnf("lexical store: no snapshot found in %s", dir)
		return nil
	}
	items, err := decodeItemSnapshot(data)
	if err != nil {
		return err
	}
	added, err := s.Add(ctx, items)
	if err != nil {
		return err
	}
	logging.Infof("lexical store: loaded %d memories from %s", len(added), dir)
	return nil
}

func (s *LexicalStore) reindex() {
	s.index = make(map[string]int, len(s.items))
	for i, item := range s.items {
		s.index[item.ID] = i
	}
}

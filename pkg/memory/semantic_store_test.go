package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/memvault/memvault/pkg/embedding"
	"github.com/memvault/memvault/pkg/vecdb"
)

// fakeVectorStore is an in-memory VectorStore. Search returns matches in
// insertion order, scored by cosine similarity, so tests can verify the
// semantic store enforces its own ordering.
type fakeVectorStore struct {
	points map[string]vecdb.Point
	order  []string
	opened bool
	err    error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{points: make(map[string]vecdb.Point)}
}

func (f *fakeVectorStore) Open(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.opened = true
	return nil
}

func (f *fakeVectorStore) Close() error { return nil }

func (f *fakeVectorStore) Upsert(ctx context.Context, points []vecdb.Point) error {
	if f.err != nil {
		return f.err
	}
	for _, p := range points {
		if _, exists := f.points[p.ID]; !exists {
			f.order = append(f.order, p.ID)
		}
		f.points[p.ID] = p
	}
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]vecdb.Point, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []vecdb.Point
	for _, id := range f.order {
		p := f.points[id]
		if !payloadMatches(p.Payload, filter) {
			continue
		}
		p.Score = cosine(vector, p.Vector)
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeVectorStore) Get(ctx context.Context, id string) (*vecdb.Point, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.points[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeVectorStore) GetAll(ctx context.Context) ([]vecdb.Point, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]vecdb.Point, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.points[id])
	}
	return out, nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, ids []string) error {
	if f.err != nil {
		return f.err
	}
	for _, id := range ids {
		if _, ok := f.points[id]; !ok {
			continue
		}
		delete(f.points, id)
		for i, oid := range f.order {
			if oid == id {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (f *fakeVectorStore) DeleteAll(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.points = make(map[string]vecdb.Point)
	f.order = nil
	return nil
}

func (f *fakeVectorStore) Count(ctx context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.points)), nil
}

func payloadMatches(payload map[string]interface{}, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	meta, _ := payload["metadata"].(map[string]interface{})
	for k, want := range filter {
		got, ok := meta[k].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding service down")
}

func newSemanticFixture(t *testing.T, opts ...SemanticOption) (*SemanticStore, *embedding.Mock, *fakeVectorStore) {
	t.Helper()
	mock := embedding.NewMock(128)
	db := newFakeVectorStore()
	s, err := NewSemanticStore(mock, db, opts...)
	if err != nil {
		t.Fatalf("NewSemanticStore failed: %v", err)
	}
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, mock, db
}

func TestNewSemanticStoreValidation(t *testing.T) {
	if _, err := NewSemanticStore(nil, newFakeVectorStore()); !errors.Is(err, ErrConfig) {
		t.Errorf("nil embedder: expected ErrConfig, got %v", err)
	}
	if _, err := NewSemanticStore(embedding.NewMock(8), nil); !errors.Is(err, ErrConfig) {
		t.Errorf("nil vector store: expected ErrConfig, got %v", err)
	}
}

func TestSemanticAddBatchesEmbedding(t *testing.T) {
	ctx := context.Background()
	s, mock, db := newSemanticFixture(t)

	ids, err := s.Add(ctx, []*Item{
		NewItem("first memory", Metadata{}),
		NewItem("second memory", Metadata{}),
		NewItem("third memory", Metadata{}),
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	if mock.Calls != 1 {
		t.Errorf("expected a single batched Embed call, got %d", mock.Calls)
	}
	if len(db.points) != 3 {
		t.Errorf("expected 3 stored points, got %d", len(db.points))
	}
	for _, p := range db.points {
		if len(p.Vector) != 128 {
			t.Errorf("point %s has no vector", p.ID)
		}
	}
}

func TestSemanticAddSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	s, _, db := newSemanticFixture(t)

	item := NewItem("keep the original", Metadata{})
	if _, err := s.Add(ctx, []*Item{item}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ids, err := s.Add(ctx, []*Item{{ID: item.ID, Memory: "do not overwrite"}})
	if err != nil {
		t.Fatalf("duplicate Add failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("duplicate add should return no ids, got %v", ids)
	}
	got, _ := s.Get(ctx, item.ID)
	if got.Memory != "keep the original" {
		t.Errorf("duplicate add overwrote: %q", got.Memory)
	}
	if len(db.points) != 1 {
		t.Errorf("expected 1 point, got %d", len(db.points))
	}
}

func TestSemanticSearchOrdersByScore(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSemanticFixture(t)

	s.Add(ctx, []*Item{
		NewItem("completely unrelated text", Metadata{}),
		NewItem("another random note", Metadata{}),
		NewItem("the exact query text", Metadata{}),
	})

	results, err := s.Search(ctx, "the exact query text", 3, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	// The fake returns insertion order; the store must re-sort. An
	// identical text embeds identically, so it lands on top.
	if results[0].Item.Memory != "the exact query text" {
		t.Errorf("unexpected top result: %q", results[0].Item.Memory)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted: %v before %v", results[i-1].Score, results[i].Score)
		}
	}
}

func TestSemanticSearchTopK(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSemanticFixture(t)
	s.Add(ctx, []*Item{
		NewItem("note one", Metadata{}),
		NewItem("note two", Metadata{}),
		NewItem("note three", Metadata{}),
	})

	results, err := s.Search(ctx, "note", 2, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) > 2 {
		t.Errorf("topK exceeded: got %d results", len(results))
	}
}

func TestSemanticSearchThreshold(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSemanticFixture(t, WithScoreThreshold(0.9))
	s.Add(ctx, []*Item{
		NewItem("the exact query text", Metadata{}),
		NewItem("something else entirely", Metadata{}),
	})

	results, err := s.Search(ctx, "the exact query text", 5, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected only the near-identical match, got %d results", len(results))
	}
	if results[0].Score < 0.9 {
		t.Errorf("score below threshold leaked: %v", results[0].Score)
	}
}

func TestSemanticSearchFilter(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSemanticFixture(t)
	s.Add(ctx, []*Item{
		NewItem("meeting notes from monday", Metadata{Type: "note"}),
		NewItem("meeting notes from tuesday", Metadata{Type: "fact"}),
	})

	results, err := s.Search(ctx, "meeting notes", 5, map[string]string{"type": "note"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 filtered result, got %d", len(results))
	}
	if results[0].Item.Metadata.Type != "note" {
		t.Errorf("filter leaked: %+v", results[0].Item.Metadata)
	}
}

func TestSemanticGetMissing(t *testing.T) {
	s, _, _ := newSemanticFixture(t)
	got, err := s.Get(context.Background(), uuid.NewString())
	if err != nil {
		t.Errorf("Get of missing id should not error, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestSemanticUpdateReembeds(t *testing.T) {
	ctx := context.Background()
	s, mock, db := newSemanticFixture(t)

	ids, _ := s.Add(ctx, []*Item{NewItem("original text", Metadata{})})
	oldVector := append([]float32(nil), db.points[ids[0]].Vector...)
	callsBefore := mock.Calls

	if err := s.Update(ctx, ids[0], &Item{Memory: "completely different text"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if mock.Calls != callsBefore+1 {
		t.Errorf("update should embed the new text once, calls went %d -> %d", callsBefore, mock.Calls)
	}
	newVector := db.points[ids[0]].Vector
	if cosine(oldVector, newVector) > 0.99 {
		t.Error("vector unchanged after update")
	}

	got, _ := s.Get(ctx, ids[0])
	if got.Memory != "completely different text" {
		t.Errorf("text not updated: %q", got.Memory)
	}
}

func TestSemanticUpdatePreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSemanticFixture(t)

	ids, _ := s.Add(ctx, []*Item{NewItem("original", Metadata{})})
	before, _ := s.Get(ctx, ids[0])

	if err := s.Update(ctx, ids[0], &Item{Memory: "changed"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	after, _ := s.Get(ctx, ids[0])
	if !after.Metadata.CreatedAt.Equal(before.Metadata.CreatedAt) {
		t.Error("created_at must not change on update")
	}
	if !after.Metadata.UpdatedAt.After(before.Metadata.UpdatedAt) {
		t.Error("updated_at must advance on update")
	}
}

func TestSemanticUpdateNilItem(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := newSemanticFixture(t)
	ids, _ := s.Add(ctx, []*Item{NewItem("keep me", Metadata{})})
	callsBefore := mock.Calls

	if err := s.Update(ctx, ids[0], nil); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for nil item, got %v", err)
	}
	if mock.Calls != callsBefore {
		t.Error("nil update must not embed")
	}
	got, _ := s.Get(ctx, ids[0])
	if got.Memory != "keep me" {
		t.Errorf("nil update must not change the item, got %q", got.Memory)
	}
}

func TestSemanticUpdateMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := newSemanticFixture(t)
	callsBefore := mock.Calls

	if err := s.Update(ctx, uuid.NewString(), &Item{Memory: "new"}); err != nil {
		t.Errorf("update of missing id should be a no-op, got %v", err)
	}
	if mock.Calls != callsBefore {
		t.Error("update of missing id should not embed")
	}
}

func TestSemanticDeleteAndCount(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newSemanticFixture(t)

	ids, _ := s.Add(ctx, []*Item{
		NewItem("one", Metadata{}),
		NewItem("two", Metadata{}),
	})
	if err := s.Delete(ctx, []string{ids[0]}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("expected 1 item, got %d", n)
	}
	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("expected empty store, got %d", n)
	}
}

func TestSemanticEmbedderFailure(t *testing.T) {
	ctx := context.Background()
	s, err := NewSemanticStore(failingEmbedder{}, newFakeVectorStore())
	if err != nil {
		t.Fatalf("NewSemanticStore failed: %v", err)
	}

	_, err = s.Add(ctx, []*Item{NewItem("text", Metadata{})})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Add: expected ErrUnavailable, got %v", err)
	}
	_, err = s.Search(ctx, "query", 5, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search: expected ErrUnavailable, got %v", err)
	}
}

func TestSemanticVectorStoreFailure(t *testing.T) {
	ctx := context.Background()
	db := newFakeVectorStore()
	s, err := NewSemanticStore(embedding.NewMock(8), db)
	if err != nil {
		t.Fatalf("NewSemanticStore failed: %v", err)
	}
	db.err = fmt.Errorf("connection refused")

	if err := s.Open(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Open: expected ErrUnavailable, got %v", err)
	}
	if _, err := s.Get(ctx, uuid.NewString()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Get: expected ErrUnavailable, got %v", err)
	}
	if _, err := s.Count(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Count: expected ErrUnavailable, got %v", err)
	}
}

func TestSemanticDumpLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src, _, srcDB := newSemanticFixture(t)
	ids, _ := src.Add(ctx, []*Item{
		NewItem("persisted with vector", Metadata{Type: "fact"}),
		NewItem("second persisted memory", Metadata{}),
	})
	if err := src.Dump(ctx, dir); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	dst, dstMock, dstDB := newSemanticFixture(t)
	if err := dst.Load(ctx, dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if dstMock.Calls != 0 {
		t.Errorf("load must reuse dumped vectors, but embedded %d times", dstMock.Calls)
	}
	if n, _ := dst.Count(ctx); n != 2 {
		t.Fatalf("expected 2 loaded items, got %d", n)
	}
	for _, id := range ids {
		got, _ := dst.Get(ctx, id)
		if got == nil {
			t.Fatalf("item %s missing after load", id)
		}
		if cosine(srcDB.points[id].Vector, dstDB.points[id].Vector) < 0.999 {
			t.Errorf("vector for %s not preserved", id)
		}
	}
}

func TestSemanticLoadSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src, _, _ := newSemanticFixture(t)
	shared := NewItem("shared memory", Metadata{})
	src.Add(ctx, []*Item{shared})
	if err := src.Dump(ctx, dir); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	dst, _, _ := newSemanticFixture(t)
	dst.Add(ctx, []*Item{{ID: shared.ID, Memory: "local version"}})
	if err := dst.Load(ctx, dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got, _ := dst.Get(ctx, shared.ID)
	if got.Memory != "local version" {
		t.Errorf("load overwrote existing item: %q", got.Memory)
	}
}

func TestSemanticLoadRejectsItemSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	lex := NewLexicalStore()
	lex.Add(ctx, []*Item{NewItem("lexical world", Metadata{})})
	if err := lex.Dump(ctx, dir); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	s, _, _ := newSemanticFixture(t)
	if err := s.Load(ctx, dir); !errors.Is(err, ErrSnapshotFormat) {
		t.Errorf("expected ErrSnapshotFormat, got %v", err)
	}
}

func TestSemanticLoadMissingSnapshot(t *testing.T) {
	s, _, _ := newSemanticFixture(t)
	if err := s.Load(context.Background(), t.TempDir()); err != nil {
		t.Errorf("missing snapshot should not error, got %v", err)
	}
}

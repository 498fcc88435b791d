package vecdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/memvault/memvault/pkg/observability/logging"
)

const (
	fieldID      = "id"
	fieldVector  = "vector"
	fieldPayload = "payload"

	getAllPageSize = 256
)

// MilvusConfig configures the Milvus-backed vector store.
type MilvusConfig struct {
	Address    string `yaml:"address"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
	Database   string `yaml:"database,omitempty"`
	Collection string `yaml:"collection"`
	Dimension  int    `yaml:"dimension"`
	Metric     string `yaml:"metric,omitempty"`
}

// DefaultMilvusConfig returns the configuration for a local Milvus.
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Address:    "localhost:19530",
		Collection: "memvault",
		Dimension:  1536,
		Metric:     "cosine",
	}
}

// milvusClient is the slice of the Milvus SDK surface this store uses.
// Tests substitute a fake.
type milvusClient interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	Query(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, opts ...client.SearchQueryOptionFunc) (client.ResultSet, error)
	DeleteByPks(ctx context.Context, collName string, partitionName string, ids entity.Column) error
	DropCollection(ctx context.Context, collName string, opts ...client.DropCollectionOption) error
	Close() error
}

// MilvusStore implements VectorStore on a single Milvus collection with
// schema (id varchar PK, vector float-vector, payload JSON).
type MilvusStore struct {
	cfg    MilvusConfig
	mc     milvusClient
	metric entity.MetricType
	opened bool
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvus validates the configuration and returns an unopened store.
// No network traffic happens until Open.
func NewMilvus(cfg MilvusConfig) (*MilvusStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("milvus address is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("milvus collection name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("milvus vector dimension must be positive, got %d", cfg.Dimension)
	}
	metric, err := parseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	return &MilvusStore{cfg: cfg, metric: metric}, nil
}

func parseMetric(name string) (entity.MetricType, error) {
	switch strings.ToLower(name) {
	case "", "cosine":
		return entity.COSINE, nil
	case "l2":
		return entity.L2, nil
	case "ip":
		return entity.IP, nil
	default:
		return "", fmt.Errorf("unknown milvus metric %q", name)
	}
}

// Open dials Milvus and ensures the collection exists, is indexed, and is
// loaded. Calling Open on an opened store is a no-op.
func (s *MilvusStore) Open(ctx context.Context) error {
	if s.opened {
		return nil
	}
	if s.mc == nil {
		mc, err := client.NewClient(ctx, client.Config{
			Address:  s.cfg.Address,
			Username: s.cfg.Username,
			Password: s.cfg.Password,
			DBName:   s.cfg.Database,
		})
		if err != nil {
			return fmt.Errorf("connect to milvus at %s: %w", s.cfg.Address, err)
		}
		s.mc = mc
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}
	s.opened = true
	logging.Infof("milvus: collection %q ready at %s", s.cfg.Collection, s.cfg.Address)
	return nil
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := s.mc.HasCollection(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", s.cfg.Collection, err)
	}
	if !has {
		schema := entity.NewSchema().
			WithName(s.cfg.Collection).
			WithDescription("memvault memory points").
			WithField(entity.NewField().
				WithName(fieldID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(64).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(fieldVector).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(s.cfg.Dimension))).
			WithField(entity.NewField().
				WithName(fieldPayload).
				WithDataType(entity.FieldTypeJSON))
		if err := s.mc.CreateCollection(ctx, schema, 1); err != nil {
			return fmt.Errorf("create collection %q: %w", s.cfg.Collection, err)
		}
		index, err := entity.NewIndexHNSW(s.metric, 16, 200)
		if err != nil {
			return fmt.Errorf("build hnsw index: %w", err)
		}
		if err := s.mc.CreateIndex(ctx, s.cfg.Collection, fieldVector, index, false); err != nil {
			return fmt.Errorf("create index on %q: %w", s.cfg.Collection, err)
		}
	}
	if err := s.mc.LoadCollection(ctx, s.cfg.Collection, false); err != nil {
		return fmt.Errorf("load collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

// Upsert writes the points, replacing any with the same id.
func (s *MilvusStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	ids := make([]string, len(points))
	vectors := make([][]float32, len(points))
	payloads := make([][]byte, len(points))
	for i, p := range points {
		ids[i] = p.ID
		vectors[i] = p.Vector
		data, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("encode payload for %s: %w", p.ID, err)
		}
		payloads[i] = data
	}
	_, err := s.mc.Upsert(ctx, s.cfg.Collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, s.cfg.Dimension, vectors),
		entity.NewColumnJSONBytes(fieldPayload, payloads),
	)
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search returns the topK nearest points, most similar first.
func (s *MilvusStore) Search(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Point, error) {
	if topK <= 0 {
		return nil, nil
	}
	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("build search param: %w", err)
	}
	results, err := s.mc.Search(ctx, s.cfg.Collection, nil, buildFilterExpr(filter),
		[]string{fieldPayload},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector, s.metric, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var points []Point
	for _, res := range results {
		payloadCol := columnByName(res.Fields, fieldPayload)
		for i := 0; i < res.ResultCount; i++ {
			id, err := res.IDs.GetAsString(i)
			if err != nil {
				return nil, fmt.Errorf("read result id: %w", err)
			}
			payload, err := decodePayload(payloadCol, i)
			if err != nil {
				return nil, err
			}
			points = append(points, Point{
				ID:      id,
				Payload: payload,
				Score:   float64(res.Scores[i]),
			})
		}
	}
	return points, nil
}

// Get returns the point with the given id, or (nil, nil) when absent.
func (s *MilvusStore) Get(ctx context.Context, id string) (*Point, error) {
	points, err := s.query(ctx, idExpr(id))
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}
	return &points[0], nil
}

// GetAll returns every stored point, paging through the collection.
func (s *MilvusStore) GetAll(ctx context.Context) ([]Point, error) {
	var all []Point
	for offset := int64(0); ; offset += getAllPageSize {
		page, err := s.query(ctx, fmt.Sprintf(`%s != ""`, fieldID),
			client.WithOffset(offset), client.WithLimit(getAllPageSize))
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < getAllPageSize {
			return all, nil
		}
	}
}

func (s *MilvusStore) query(ctx context.Context, expr string, opts ...client.SearchQueryOptionFunc) ([]Point, error) {
	rs, err := s.mc.Query(ctx, s.cfg.Collection, nil, expr,
		[]string{fieldID, fieldVector, fieldPayload}, opts...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expr, err)
	}

	idCol, ok := rs.GetColumn(fieldID).(*entity.ColumnVarChar)
	if !ok || idCol == nil {
		return nil, nil
	}
	vectorCol, _ := rs.GetColumn(fieldVector).(*entity.ColumnFloatVector)
	payloadCol := rs.GetColumn(fieldPayload)

	points := make([]Point, 0, idCol.Len())
	for i := 0; i < idCol.Len(); i++ {
		id, err := idCol.ValueByIdx(i)
		if err != nil {
			return nil, fmt.Errorf("read id column: %w", err)
		}
		payload, err := decodePayload(payloadCol, i)
		if err != nil {
			return nil, err
		}
		p := Point{ID: id, Payload: payload}
		if vectorCol != nil && i < len(vectorCol.Data()) {
			p.Vector = vectorCol.Data()[i]
		}
		points = append(points, p)
	}
	return points, nil
}

// Delete removes the points with the given ids.
func (s *MilvusStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.mc.DeleteByPks(ctx, s.cfg.Collection, "", entity.NewColumnVarChar(fieldID, ids)); err != nil {
		return fmt.Errorf("delete %d points: %w", len(ids), err)
	}
	return nil
}

// DeleteAll drops the collection and recreates it empty.
func (s *MilvusStore) DeleteAll(ctx context.Context) error {
	if err := s.mc.DropCollection(ctx, s.cfg.Collection); err != nil {
		return fmt.Errorf("drop collection %q: %w", s.cfg.Collection, err)
	}
	return s.ensureCollection(ctx)
}

// Count returns the number of stored points.
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	rs, err := s.mc.Query(ctx, s.cfg.Collection, nil, "", []string{"count(*)"})
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	col, ok := rs.GetColumn("count(*)").(*entity.ColumnInt64)
	if !ok || col == nil || len(col.Data()) == 0 {
		return 0, fmt.Errorf("count: unexpected result columns")
	}
	return col.Data()[0], nil
}

// Close releases the Milvus connection.
func (s *MilvusStore) Close() error {
	s.opened = false
	if s.mc == nil {
		return nil
	}
	err := s.mc.Close()
	s.mc = nil
	return err
}

// buildFilterExpr compiles metadata equality filters into a Milvus boolean
// expression over the JSON payload, e.g.
// payload["metadata"]["type"] == "fact" && payload["metadata"]["source"] == "manual".
func buildFilterExpr(filter map[string]string) string {
	if len(filter) == 0 {
		return ""
	}
	terms := make([]string, 0, len(filter))
	for key, val := range filter {
		terms = append(terms, fmt.Sprintf(`%s["metadata"][%s] == %s`,
			fieldPayload, quoteExpr(key), quoteExpr(val)))
	}
	// Deterministic expression order for log readability.
	sort.Strings(terms)
	return strings.Join(terms, " && ")
}

func idExpr(id string) string {
	return fmt.Sprintf(`%s == %s`, fieldID, quoteExpr(id))
}

func quoteExpr(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func columnByName(fields []entity.Column, name string) entity.Column {
	for _, f := range fields {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

func decodePayload(col entity.Column, idx int) (map[string]interface{}, error) {
	jsonCol, ok := col.(*entity.ColumnJSONBytes)
	if !ok || jsonCol == nil {
		return nil, fmt.Errorf("payload column missing from result")
	}
	raw, err := jsonCol.ValueByIdx(idx)
	if err != nil {
		return nil, fmt.Errorf("read payload column: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

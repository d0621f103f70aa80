// Package qdrantindex implements the search.VectorIndex interface on top of
// a Qdrant collection. Product vectors are upserted with their filterable
// attributes as payload so category, brand, price and stock filters run
// server-side.
package qdrantindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/logging"
	"github.com/hupe1980/shopmesh/search"
	"github.com/hupe1980/shopmesh/search/memindex"
)

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant server address (e.g. "https://example.qdrant.io:6334").
	URL string

	// CollectionName is the collection holding product vectors.
	CollectionName string

	// APIKey is an optional API key for authentication.
	APIKey string

	// VectorSize is the embedding dimensionality (1536 for
	// text-embedding-3-small).
	VectorSize uint64
}

// Options configures optional Index collaborators.
type Options struct {
	Logger logging.Logger
}

// Index implements search.VectorIndex backed by Qdrant.
type Index struct {
	client     *qdrant.Client
	embedder   memindex.Embedder
	collection string
	vectorSize uint64
	logger     logging.Logger
}

var _ search.VectorIndex = (*Index)(nil)

// New creates a Qdrant-backed index.
func New(cfg Config, embedder memindex.Embedder, optFns ...func(o *Options)) (*Index, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = 1536
	}

	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	parsed := cfg.URL
	if !strings.HasPrefix(parsed, "http://") && !strings.HasPrefix(parsed, "https://") {
		parsed = "https://" + parsed
	}
	u, err := url.Parse(parsed)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &Index{
		client:     client,
		embedder:   embedder,
		collection: cfg.CollectionName,
		vectorSize: cfg.VectorSize,
		logger:     opts.Logger,
	}, nil
}

// Build ensures the collection exists and upserts one point per product with
// its embedding and filterable payload.
func (x *Index) Build(ctx context.Context, products []catalog.Product) error {
	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: x.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     x.vectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = p.Name + ". " + p.Description
	}
	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed products: %w", err)
	}

	points := make([]*qdrant.PointStruct, len(products))
	for i, p := range products {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"product_id": p.ID,
				"category":   strings.ToLower(p.Category),
				"brand":      strings.ToLower(p.Attributes.Brand),
				"price":      p.Price,
				"stock":      int64(p.Stock),
			}),
		}
	}

	_, err = x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}

	x.logger.Info("qdrantindex.built", "collection", x.collection, "count", len(points))
	return nil
}

// Search implements search.VectorIndex.
func (x *Index) Search(ctx context.Context, query string, topK int, filters catalog.Filters) ([]search.Match, error) {
	qv, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := uint64(topK)
	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(qv[0]...),
		Limit:          &limit,
		Filter:         buildFilter(filters),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	matches := make([]search.Match, 0, len(points))
	for _, point := range points {
		id := ""
		if point.Payload != nil {
			if v, ok := point.Payload["product_id"]; ok {
				id = v.GetStringValue()
			}
		}
		if id == "" {
			continue
		}
		matches = append(matches, search.Match{ID: id, Score: float64(point.Score)})
	}
	return matches, nil
}

// buildFilter converts catalog filters into a Qdrant payload filter.
func buildFilter(f catalog.Filters) *qdrant.Filter {
	var conditions []*qdrant.Condition

	if f.Category != "" {
		conditions = append(conditions, keywordCondition("category", strings.ToLower(f.Category)))
	}
	if f.Brand != "" {
		conditions = append(conditions, keywordCondition("brand", strings.ToLower(f.Brand)))
	}
	if f.MinPrice > 0 || f.MaxPrice > 0 {
		priceRange := &qdrant.Range{}
		if f.MinPrice > 0 {
			priceRange.Gte = &f.MinPrice
		}
		if f.MaxPrice > 0 {
			priceRange.Lte = &f.MaxPrice
		}
		conditions = append(conditions, rangeCondition("price", priceRange))
	}
	if f.InStockOnly {
		zero := float64(0)
		conditions = append(conditions, rangeCondition("stock", &qdrant.Range{Gt: &zero}))
	}

	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func rangeCondition(key string, r *qdrant.Range) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: key, Range: r},
		},
	}
}

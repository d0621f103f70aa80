// Package memindex provides an in-process cosine-similarity VectorIndex. On
// startup it embeds the catalog (or loads a JSON embedding cache from disk)
// and serves queries from memory. Best suited for small catalogs and local
// development; use the qdrantindex package for a real vector database.
package memindex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/logging"
	"github.com/hupe1980/shopmesh/search"
)

// Embedder turns text into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures an Index.
type Options struct {
	// CachePath, when set, persists embeddings as JSON so subsequent starts
	// skip the embedding API entirely.
	CachePath string
	Logger    logging.Logger
}

// Index is an in-memory vector index over catalog products.
type Index struct {
	embedder  Embedder
	cachePath string
	logger    logging.Logger

	mu      sync.RWMutex
	ids     []string
	vectors [][]float32
	meta    map[string]catalog.Product
}

var _ search.VectorIndex = (*Index)(nil)

// New constructs an empty index; call Build before searching.
func New(embedder Embedder, optFns ...func(o *Options)) *Index {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Index{
		embedder:  embedder,
		cachePath: opts.CachePath,
		logger:    opts.Logger,
		meta:      make(map[string]catalog.Product),
	}
}

type cacheFile struct {
	IDs     []string    `json:"ids"`
	Vectors [][]float32 `json:"vectors"`
}

// Build embeds every product (or restores vectors from the cache when the
// product set is unchanged). If embedding fails the index stays empty and
// searches return an error, which the hybrid search layer treats as degraded
// mode rather than a request failure.
func (x *Index) Build(ctx context.Context, products []catalog.Product) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.ids = x.ids[:0]
	for _, p := range products {
		x.ids = append(x.ids, p.ID)
		x.meta[p.ID] = p
	}

	if cached := x.loadCache(); cached != nil && sameIDSet(cached.IDs, x.ids) {
		x.ids = cached.IDs
		x.vectors = cached.Vectors
		x.logger.Info("memindex.cache.loaded", "count", len(x.ids))
		return nil
	}

	texts := make([]string, 0, len(products))
	for _, p := range products {
		texts = append(texts, embeddingText(p))
	}

	vectors, err := x.embedBatched(ctx, texts)
	if err != nil {
		x.vectors = nil
		return fmt.Errorf("build embedding index: %w", err)
	}
	x.vectors = vectors
	x.saveCache()
	x.logger.Info("memindex.built", "count", len(x.ids))
	return nil
}

// embedBatched embeds texts in chunks of 100 to respect API batch limits.
func (x *Index) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	const batchSize = 100
	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := x.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}
	return all, nil
}

// Search embeds the query and ranks products by cosine similarity.
func (x *Index) Search(ctx context.Context, query string, topK int, filters catalog.Filters) ([]search.Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.vectors) == 0 {
		return nil, fmt.Errorf("memindex: no vectors indexed")
	}

	qv, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	type scored struct {
		id    string
		score float64
	}
	hits := make([]scored, 0, len(x.ids))
	for i, id := range x.ids {
		p, ok := x.meta[id]
		if !ok || !matchesFilters(p, filters) {
			continue
		}
		hits = append(hits, scored{id: id, score: cosine(qv[0], x.vectors[i])})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}

	matches := make([]search.Match, len(hits))
	for i, h := range hits {
		matches[i] = search.Match{ID: h.id, Score: h.score}
	}
	return matches, nil
}

func (x *Index) loadCache() *cacheFile {
	if x.cachePath == "" {
		return nil
	}
	data, err := os.ReadFile(x.cachePath)
	if err != nil {
		return nil
	}
	var cached cacheFile
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil
	}
	return &cached
}

func (x *Index) saveCache() {
	if x.cachePath == "" {
		return
	}
	payload, err := json.Marshal(cacheFile{IDs: x.ids, Vectors: x.vectors})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(x.cachePath), 0o755); err != nil {
		x.logger.Warn("memindex.cache.write_failed", "error", err.Error())
		return
	}
	if err := os.WriteFile(x.cachePath, payload, 0o644); err != nil {
		x.logger.Warn("memindex.cache.write_failed", "error", err.Error())
	}
}

func embeddingText(p catalog.Product) string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteString(". ")
	b.WriteString(p.Description)
	if len(p.KeyFeatures) > 0 {
		b.WriteString(" Features: ")
		b.WriteString(strings.Join(p.KeyFeatures, ", "))
	}
	if p.MerchantName != "" {
		b.WriteString(" Sold by ")
		b.WriteString(p.MerchantName)
		b.WriteString(".")
	}
	return b.String()
}

func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

func matchesFilters(p catalog.Product, f catalog.Filters) bool {
	if f.Category != "" && !strings.Contains(strings.ToLower(p.Category), strings.ToLower(f.Category)) {
		return false
	}
	if f.Brand != "" && !strings.Contains(strings.ToLower(p.Attributes.Brand), strings.ToLower(f.Brand)) {
		return false
	}
	if f.MinPrice > 0 && p.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && p.Price > f.MaxPrice {
		return false
	}
	if f.InStockOnly && p.Stock <= 0 {
		return false
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(na)*math.Sqrt(nb) + 1e-9
	return dot / denom
}

// Package search implements hybrid product retrieval: semantic ranking from a
// vector index and keyword ranking from the catalog store, merged with
// Reciprocal Rank Fusion. The semantic backend is a soft dependency; when it
// is unavailable the service degrades to keyword-only ranking instead of
// failing the request.
package search

import (
	"context"
	"sort"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/logging"
)

// RRFConstant is the k in the fused score Σ 1/(k+rank). The conventional
// value of 60 keeps low ranks from dominating.
const RRFConstant = 60

// DefaultMaxResults bounds the fused result list.
const DefaultMaxResults = 20

// Match is a semantic hit: a product id with its raw similarity score.
// Scores are only comparable within one result list.
type Match struct {
	ID    string
	Score float64
}

// VectorIndex is the embedding-similarity backend. Implementations must be
// safe for concurrent use.
type VectorIndex interface {
	// Search returns up to topK matches for the query, most similar first,
	// after applying filters.
	Search(ctx context.Context, query string, topK int, filters catalog.Filters) ([]Match, error)
}

// Options configures a Service.
type Options struct {
	MaxResults   int
	SemanticTopK int
	Logger       logging.Logger
}

// Service fuses semantic and keyword retrieval into one ranked product list.
type Service struct {
	index        VectorIndex // may be nil: keyword-only operation
	catalog      catalog.Store
	maxResults   int
	semanticTopK int
	logger       logging.Logger
}

// New constructs a hybrid search service. A nil index is allowed and puts the
// service permanently in keyword-only mode.
func New(index VectorIndex, store catalog.Store, optFns ...func(o *Options)) *Service {
	opts := Options{MaxResults: DefaultMaxResults, SemanticTopK: 10, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{
		index:        index,
		catalog:      store,
		maxResults:   opts.MaxResults,
		semanticTopK: opts.SemanticTopK,
		logger:       opts.Logger,
	}
}

// Search runs both retrieval paths and merges them. Each path produces a
// ranked list with rank positions only; scores are not comparable across
// lists, which is why fusion is rank-based.
func (s *Service) Search(ctx context.Context, query string, filters catalog.Filters) ([]catalog.Product, error) {
	var semantic []Match
	if s.index != nil {
		matches, err := s.index.Search(ctx, query, s.semanticTopK, filters)
		if err != nil {
			s.logger.Warn("search.semantic.degraded", "error", err.Error())
		} else {
			semantic = matches
		}
	}

	keyword, err := s.catalog.Search(ctx, query, filters)
	if err != nil {
		return nil, err
	}

	fused := s.fuse(ctx, semantic, keyword)
	if len(fused) > s.maxResults {
		fused = fused[:s.maxResults]
	}
	return fused, nil
}

// fuse merges the two ranked lists via Reciprocal Rank Fusion. Ties are broken
// by higher raw semantic similarity, then by catalog insertion order so the
// result is deterministic.
func (s *Service) fuse(ctx context.Context, semantic []Match, keyword []catalog.Product) []catalog.Product {
	type fusedEntry struct {
		id       string
		score    float64
		semScore float64
	}

	entries := make(map[string]*fusedEntry)
	products := make(map[string]catalog.Product)

	for rank, m := range semantic {
		e := &fusedEntry{id: m.ID, semScore: m.Score}
		e.score = 1.0 / float64(RRFConstant+rank+1)
		entries[m.ID] = e
	}
	for rank, p := range keyword {
		e, ok := entries[p.ID]
		if !ok {
			e = &fusedEntry{id: p.ID}
			entries[p.ID] = e
		}
		e.score += 1.0 / float64(RRFConstant+rank+1)
		products[p.ID] = p
	}

	insertionOrder := make(map[string]int)
	for i, p := range s.catalog.All(ctx) {
		insertionOrder[p.ID] = i
	}

	ranked := make([]*fusedEntry, 0, len(entries))
	for _, e := range entries {
		ranked = append(ranked, e)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].semScore != ranked[j].semScore {
			return ranked[i].semScore > ranked[j].semScore
		}
		return insertionOrder[ranked[i].id] < insertionOrder[ranked[j].id]
	})

	results := make([]catalog.Product, 0, len(ranked))
	for _, e := range ranked {
		if p, ok := products[e.id]; ok {
			results = append(results, p)
			continue
		}
		// Semantic-only hit: resolve the full product from the catalog.
		if p, ok := s.catalog.Get(ctx, e.id); ok {
			results = append(results, p)
		}
	}
	return results
}

package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/internal/testutil"
)

type stubIndex struct {
	matches []Match
	err     error
	queries []string
}

func (s *stubIndex) Search(_ context.Context, query string, _ int, _ catalog.Filters) ([]Match, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}

func TestKeywordOnlySearch(t *testing.T) {
	svc := New(nil, testutil.Catalog())

	got, err := svc.Search(context.Background(), "running shoes", catalog.Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "prod_001", got[0].ID)
}

func TestHybridFusionPrefersAgreement(t *testing.T) {
	// prod_003 is top-ranked semantically and also a keyword match, so its
	// fused score beats entries that appear in only one list.
	idx := &stubIndex{matches: []Match{
		{ID: "prod_003", Score: 0.91},
		{ID: "prod_004", Score: 0.42},
	}}
	svc := New(idx, testutil.Catalog())

	got, err := svc.Search(context.Background(), "jacket", catalog.Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "prod_003", got[0].ID)
	assert.Equal(t, []string{"jacket"}, idx.queries)
}

func TestSemanticOnlyHitResolvedFromCatalog(t *testing.T) {
	// The keyword path misses the tote for "carryall"; the semantic hit
	// still surfaces it with full product data.
	idx := &stubIndex{matches: []Match{{ID: "prod_004", Score: 0.8}}}
	svc := New(idx, testutil.Catalog())

	got, err := svc.Search(context.Background(), "carryall", catalog.Filters{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "City Tote", got[0].Name)
}

func TestSemanticFailureDegradesToKeyword(t *testing.T) {
	idx := &stubIndex{err: errors.New("connection refused")}
	svc := New(idx, testutil.Catalog())

	got, err := svc.Search(context.Background(), "running shoes", catalog.Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "prod_001", got[0].ID)
}

func TestFusionTieBreaks(t *testing.T) {
	store := testutil.Catalog()
	svc := New(nil, store)
	ctx := context.Background()
	all := store.All(ctx)

	t.Run("SimilarityBreaksEqualFusedScores", func(t *testing.T) {
		// Semantic rank 0 and keyword rank 0 fuse to the same score; the
		// raw similarity puts the semantic hit first.
		semantic := []Match{{ID: "prod_004", Score: 0.7}}
		keyword := []catalog.Product{all[2]} // prod_003
		fused := svc.fuse(ctx, semantic, keyword)
		require.Len(t, fused, 2)
		assert.Equal(t, "prod_004", fused[0].ID)
		assert.Equal(t, "prod_003", fused[1].ID)
	})

	t.Run("InsertionOrderBreaksFullTies", func(t *testing.T) {
		// Zero similarity on the semantic side leaves both entries fully
		// tied; catalog insertion order decides.
		semantic := []Match{{ID: "prod_004", Score: 0}}
		keyword := []catalog.Product{all[2]} // prod_003
		fused := svc.fuse(ctx, semantic, keyword)
		require.Len(t, fused, 2)
		assert.Equal(t, "prod_003", fused[0].ID)
		assert.Equal(t, "prod_004", fused[1].ID)
	})
}

func TestMaxResultsBoundsOutput(t *testing.T) {
	svc := New(nil, testutil.Catalog(), func(o *Options) {
		o.MaxResults = 1
	})

	got, err := svc.Search(context.Background(), "shoes", catalog.Filters{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestUnknownSemanticIDSkipped(t *testing.T) {
	idx := &stubIndex{matches: []Match{{ID: "prod_missing", Score: 0.99}}}
	svc := New(idx, testutil.Catalog())

	got, err := svc.Search(context.Background(), "shoes", catalog.Filters{})
	require.NoError(t, err)
	for _, p := range got {
		assert.NotEqual(t, "prod_missing", p.ID)
	}
}

package memindex

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/catalog"
	"github.com/hupe1980/shopmesh/internal/testutil"
)

// fakeEmbedder maps known phrases onto fixed unit vectors so cosine ranking
// is predictable without any API.
type fakeEmbedder struct {
	byText map[string][]float32
	def    []float32
	calls  int
	err    error
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		byText: map[string][]float32{},
		def:    []float32{0, 0, 1},
	}
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.byText[t]; ok {
			out[i] = v
		} else {
			out[i] = f.def
		}
	}
	return out, nil
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	products := testutil.Products()
	emb := newFakeEmbedder()
	emb.byText[embeddingText(products[0])] = []float32{1, 0, 0} // prod_001
	emb.byText[embeddingText(products[2])] = []float32{0, 1, 0} // prod_003
	emb.byText["warm jacket"] = []float32{0, 1, 0}

	idx := New(emb)
	require.NoError(t, idx.Build(context.Background(), products))

	matches, err := idx.Search(context.Background(), "warm jacket", 2, catalog.Filters{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "prod_003", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 0.01)
}

func TestSearchAppliesFilters(t *testing.T) {
	emb := newFakeEmbedder()
	idx := New(emb)
	require.NoError(t, idx.Build(context.Background(), testutil.Products()))

	matches, err := idx.Search(context.Background(), "anything", 10, catalog.Filters{Category: "shoes", InStockOnly: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "prod_001", matches[0].ID)
}

func TestSearchBeforeBuildFails(t *testing.T) {
	idx := New(newFakeEmbedder())

	_, err := idx.Search(context.Background(), "shoes", 5, catalog.Filters{})
	assert.Error(t, err)
}

func TestBuildFailureLeavesIndexEmpty(t *testing.T) {
	emb := newFakeEmbedder()
	emb.err = errors.New("quota exceeded")
	idx := New(emb)

	err := idx.Build(context.Background(), testutil.Products())
	require.Error(t, err)

	emb.err = nil
	_, err = idx.Search(context.Background(), "shoes", 5, catalog.Filters{})
	assert.Error(t, err)
}

func TestCacheSkipsReembedding(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "embeddings.json")
	products := testutil.Products()

	emb := newFakeEmbedder()
	first := New(emb, func(o *Options) {
		o.CachePath = cachePath
	})
	require.NoError(t, first.Build(context.Background(), products))
	buildCalls := emb.calls
	require.Greater(t, buildCalls, 0)

	// A fresh index over the same products restores vectors from disk.
	second := New(emb, func(o *Options) {
		o.CachePath = cachePath
	})
	require.NoError(t, second.Build(context.Background(), products))
	assert.Equal(t, buildCalls, emb.calls)

	_, err := second.Search(context.Background(), "shoes", 5, catalog.Filters{})
	assert.NoError(t, err)
}

func TestCacheInvalidatedWhenProductsChange(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "embeddings.json")
	products := testutil.Products()

	emb := newFakeEmbedder()
	first := New(emb, func(o *Options) {
		o.CachePath = cachePath
	})
	require.NoError(t, first.Build(context.Background(), products))
	buildCalls := emb.calls

	changed := append(products, catalog.Product{ID: "prod_005", Name: "Wool Beanie", Category: "hats", Stock: 3})
	second := New(emb, func(o *Options) {
		o.CachePath = cachePath
	})
	require.NoError(t, second.Build(context.Background(), changed))
	assert.Greater(t, emb.calls, buildCalls)
}

func TestTopKBoundsResults(t *testing.T) {
	idx := New(newFakeEmbedder())
	require.NoError(t, idx.Build(context.Background(), testutil.Products()))

	matches, err := idx.Search(context.Background(), "anything", 2, catalog.Filters{})
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

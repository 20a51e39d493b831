package vectorindex

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffsec/vectorcore/internal/apierr"
)

func TestInsertAssignsIDWhenEmpty(t *testing.T) {
	idx := New(DefaultConfig(3, Euclidean))
	id, err := idx.Insert([]float32{1, 2, 3}, "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	idx := New(DefaultConfig(3, Euclidean))
	_, err := idx.Insert([]float32{1, 2, 3}, "dup", nil)
	require.NoError(t, err)

	_, err = idx.Insert([]float32{4, 5, 6}, "dup", nil)
	require.Error(t, err)
	assert.Equal(t, apierr.KindConflict, apierr.KindOf(err))
	assert.Equal(t, 1, idx.Len(), "failed insert must not mutate state")
}

func TestInsertRejectsDimensionMismatch(t *testing.T) {
	idx := New(DefaultConfig(3, Euclidean))
	_, err := idx.Insert([]float32{1, 2}, "short", nil)
	require.Error(t, err)
	assert.Equal(t, apierr.KindBadRequest, apierr.KindOf(err))
	assert.Equal(t, 0, idx.Len())
}

func TestSearchExactSelfMatch(t *testing.T) {
	idx := New(DefaultConfig(4, Euclidean))
	id, err := idx.Insert([]float32{1, 2, 3, 4}, "", nil)
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 2, 3, 4}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-4)
}

func TestSearchOnEmptyIndexReturnsEmpty(t *testing.T) {
	idx := New(DefaultConfig(3, Euclidean))
	results, err := idx.Search([]float32{1, 2, 3}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchKLargerThanCollectionTruncates(t *testing.T) {
	idx := New(DefaultConfig(2, Euclidean))
	for i := 0; i < 3; i++ {
		_, err := idx.Insert([]float32{float32(i), 0}, "", nil)
		require.NoError(t, err)
	}
	results, err := idx.Search([]float32{0, 0}, 100, 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchRejectsDimensionMismatch(t *testing.T) {
	idx := New(DefaultConfig(3, Euclidean))
	_, err := idx.Search([]float32{1, 2}, 1, 0)
	require.Error(t, err)
	assert.Equal(t, apierr.KindBadRequest, apierr.KindOf(err))
}

func TestSearchResultsAscendingByDistance(t *testing.T) {
	idx := New(DefaultConfig(1, Euclidean))
	for i := 0; i < 20; i++ {
		_, err := idx.Insert([]float32{float32(i)}, "", nil)
		require.NoError(t, err)
	}

	results, err := idx.Search([]float32{0}, 10, 50)
	require.NoError(t, err)
	require.Len(t, results, 10)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestRemoveIsIdempotentAndExcludesFromSearch(t *testing.T) {
	idx := New(DefaultConfig(2, Euclidean))
	id, err := idx.Insert([]float32{0, 0}, "", nil)
	require.NoError(t, err)

	assert.True(t, idx.Remove(id))
	assert.False(t, idx.Remove(id), "removing twice must report false the second time")

	_, ok := idx.Get(id)
	assert.False(t, ok)

	results, err := idx.Search([]float32{0, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBatchInsertCountsOnlySuccesses(t *testing.T) {
	idx := New(DefaultConfig(2, Euclidean))
	n := idx.BatchInsert([]InsertRecord{
		{Values: []float32{1, 2}},
		{Values: []float32{3, 4}, ID: "dup"},
		{Values: []float32{5, 6}, ID: "dup"},
		{Values: []float32{1, 2, 3}},
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, idx.Len())
}

func TestBatchSearchSequentialMatchesIndividualSearch(t *testing.T) {
	idx := New(DefaultConfig(2, Euclidean))
	for i := 0; i < 10; i++ {
		_, err := idx.Insert([]float32{float32(i), float32(i)}, "", nil)
		require.NoError(t, err)
	}

	queries := make([]BatchQuery, 5)
	for i := range queries {
		queries[i] = BatchQuery{Values: []float32{float32(i), float32(i)}, K: 1}
	}

	results := idx.BatchSearch(context.Background(), queries)
	require.Len(t, results, 5)
	for i, r := range results {
		require.Len(t, r, 1)
		assert.InDelta(t, 0, r[0].Distance, 1e-4, "query %d should match its own vector", i)

		want, err := idx.Search(queries[i].Values, queries[i].K, queries[i].Ef)
		require.NoError(t, err)
		require.Len(t, want, 1)
		assert.Equal(t, want[0].ID, r[0].ID, "query %d", i)
	}
}

func TestBatchSearchParallelPathMatchesSequentialPath(t *testing.T) {
	idx := New(DefaultConfig(2, Euclidean))
	for i := 0; i < 50; i++ {
		_, err := idx.Insert([]float32{float32(i), float32(i)}, "", nil)
		require.NoError(t, err)
	}

	queries := make([]BatchQuery, 250) // > 100, forces the worker-pool path
	for i := range queries {
		queries[i] = BatchQuery{Values: []float32{float32(i % 50), float32(i % 50)}, K: 1}
	}

	results := idx.BatchSearch(context.Background(), queries)
	require.Len(t, results, 250)
	for i, r := range results {
		require.Lenf(t, r, 1, "query %d", i)

		want, err := idx.Search(queries[i].Values, queries[i].K, queries[i].Ef)
		require.NoError(t, err)
		require.Lenf(t, want, 1, "query %d", i)
		assert.Equalf(t, want[0].ID, r[0].ID, "query %d", i)
	}
}

func TestMetadataRoundTripsThroughInsertAndGet(t *testing.T) {
	idx := New(DefaultConfig(2, Euclidean))
	id, err := idx.Insert([]float32{1, 1}, "", map[string]string{"source": "docs", "lang": "en"})
	require.NoError(t, err)

	rec, ok := idx.Get(id)
	require.True(t, ok)
	assert.Equal(t, "docs", rec.Metadata["source"])
	assert.Equal(t, "en", rec.Metadata["lang"])
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	idx := New(DefaultConfig(2, Euclidean))
	id, err := idx.Insert([]float32{1, 1}, "", map[string]string{"k": "v"})
	require.NoError(t, err)

	rec, ok := idx.Get(id)
	require.True(t, ok)
	rec.Values[0] = 999
	rec.Metadata["k"] = "mutated"

	rec2, ok := idx.Get(id)
	require.True(t, ok)
	assert.NotEqual(t, float32(999), rec2.Values[0])
	assert.Equal(t, "v", rec2.Metadata["k"])
}

func TestCosineMetricRanksByAngleNotMagnitude(t *testing.T) {
	idx := New(DefaultConfig(2, Cosine))
	closeAngleID, err := idx.Insert([]float32{100, 0}, "", nil)
	require.NoError(t, err)
	_, err = idx.Insert([]float32{0, 1}, "", nil)
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, closeAngleID, results[0].ID)
}

func uniqueVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for d := range v {
			v[d] = float32((i*7+d*13)%101) / 10
		}
		out[i] = v
	}
	return out
}

func TestLargerGraphFindsApproximateNeighbor(t *testing.T) {
	idx := New(DefaultConfig(4, Euclidean))
	vecs := uniqueVectors(200, 4)
	var targetID string
	for i, v := range vecs {
		id, err := idx.Insert(v, "", nil)
		require.NoError(t, err)
		if i == 100 {
			targetID = id
		}
	}

	results, err := idx.Search(vecs[100], 5, 100)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, targetID, results[0].ID, "exact match should rank first even in a larger graph")
}

func TestIDsAreUniqueAcrossManyInserts(t *testing.T) {
	idx := New(DefaultConfig(2, Euclidean))
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id, err := idx.Insert([]float32{float32(i), 0}, "", nil)
		require.NoError(t, err)
		require.Falsef(t, seen[id], "duplicate generated id %q at iteration %d", id, i)
		seen[id] = true
	}
}

func TestInsertRecordHelperMirrorsInsert(t *testing.T) {
	idx := New(DefaultConfig(2, Euclidean))
	n := idx.BatchInsert([]InsertRecord{
		{ID: fmt.Sprintf("v%d", 0), Values: []float32{1, 1}},
	})
	assert.Equal(t, 1, n)
	_, ok := idx.Get("v0")
	assert.True(t, ok)
}

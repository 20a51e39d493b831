package collections

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffsec/vectorcore/internal/apierr"
	"github.com/diffsec/vectorcore/internal/vectorindex"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	return m
}

func TestCreateAndExists(t *testing.T) {
	m := newTestManager(t)

	created, err := m.Create("docs", vectorindex.DefaultConfig(4, vectorindex.Euclidean))
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, m.Exists("docs"))

	createdAgain, err := m.Create("docs", vectorindex.DefaultConfig(4, vectorindex.Euclidean))
	require.NoError(t, err)
	assert.False(t, createdAgain)
}

func TestCreateRejectsBadNames(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Create("", vectorindex.DefaultConfig(4, vectorindex.Euclidean))
	require.Error(t, err)
	assert.Equal(t, apierr.KindBadRequest, apierr.KindOf(err))

	_, err = m.Create("a/b", vectorindex.DefaultConfig(4, vectorindex.Euclidean))
	require.Error(t, err)
	assert.Equal(t, apierr.KindBadRequest, apierr.KindOf(err))
}

func TestDropRemovesCollection(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("docs", vectorindex.DefaultConfig(4, vectorindex.Euclidean))
	require.NoError(t, err)

	assert.True(t, m.Drop("docs"))
	assert.False(t, m.Exists("docs"))
	assert.False(t, m.Drop("docs"))
}

func TestInsertSearchRemoveRoundTrip(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("docs", vectorindex.DefaultConfig(3, vectorindex.Euclidean))
	require.NoError(t, err)

	id, err := m.Insert("docs", []float32{1, 0, 0}, "", map[string]string{"lang": "en"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	results, err := m.Search("docs", []float32{1, 0, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-5)

	ok, err := m.Remove("docs", id)
	require.NoError(t, err)
	assert.True(t, ok)

	results, err = m.Search("docs", []float32{1, 0, 0}, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOperationsOnUnknownCollectionReturnNotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Insert("missing", []float32{1}, "", nil)
	require.Error(t, err)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))

	_, err = m.Search("missing", []float32{1}, 1, 0)
	require.Error(t, err)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))

	_, err = m.Stats("missing")
	require.Error(t, err)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestBatchInsertCountsSuccesses(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("docs", vectorindex.DefaultConfig(2, vectorindex.Euclidean))
	require.NoError(t, err)

	n, err := m.BatchInsert("docs", []vectorindex.InsertRecord{
		{Values: []float32{1, 2}},
		{Values: []float32{3, 4}},
		{Values: []float32{1, 2, 3}}, // wrong dimension, dropped
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSearchFilterKeepsOnlyMatchingMetadata(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("docs", vectorindex.DefaultConfig(2, vectorindex.Euclidean))
	require.NoError(t, err)

	_, err = m.Insert("docs", []float32{0, 0}, "a", map[string]string{"lang": "en"})
	require.NoError(t, err)
	_, err = m.Insert("docs", []float32{0.1, 0}, "b", map[string]string{"lang": "fr"})
	require.NoError(t, err)

	results, err := m.SearchFilter("docs", []float32{0, 0}, 5, 0, map[string]string{"lang": "fr"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestBatchSearchDelegatesPerQuery(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create("docs", vectorindex.DefaultConfig(2, vectorindex.Euclidean))
	require.NoError(t, err)
	_, err = m.Insert("docs", []float32{0, 0}, "a", nil)
	require.NoError(t, err)

	results, err := m.BatchSearch(context.Background(), "docs", []vectorindex.BatchQuery{
		{Values: []float32{0, 0}, K: 1},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0], 1)
	assert.Equal(t, "a", results[0][0].ID)
}

func TestSaveAllLoadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m1, err := NewManager(dir)
	require.NoError(t, err)
	_, err = m1.Create("docs", vectorindex.DefaultConfig(3, vectorindex.Cosine))
	require.NoError(t, err)
	id, err := m1.Insert("docs", []float32{1, 0, 0}, "", map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, m1.SaveAll())

	m2, err := NewManager(dir)
	require.NoError(t, err)
	assert.True(t, m2.Exists("docs"))

	stats, err := m2.Stats("docs")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, vectorindex.Cosine, stats.Metric)

	rec, err := m2.Get("docs", id)
	require.NoError(t, err)
	assert.Equal(t, "v", rec.Metadata["k"])
}

func TestLoadAllRebuildsEmptyWhenPersistedFilesMissing(t *testing.T) {
	dir := t.TempDir()

	m1, err := NewManager(dir)
	require.NoError(t, err)
	_, err = m1.Create("docs", vectorindex.DefaultConfig(3, vectorindex.Euclidean))
	require.NoError(t, err)
	_, err = m1.Insert("docs", []float32{1, 2, 3}, "", nil)
	require.NoError(t, err)
	// No SaveAll: only the config sidecar exists on disk, not the graph/meta pair.

	m2, err := NewManager(dir)
	require.NoError(t, err)
	stats, err := m2.Stats("docs")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
}

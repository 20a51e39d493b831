package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffsec/vectorcore/internal/collections"
	"github.com/diffsec/vectorcore/internal/vectorindex"
)

func newTestServer(t *testing.T) (*Server, *collections.Manager) {
	t.Helper()
	m, err := collections.NewManager(t.TempDir())
	require.NoError(t, err)
	return NewServer(":0", m), m
}

func do(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.inner.Handler, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["healthy"])
}

func TestCreateListAndDropCollection(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.inner.Handler

	rec := do(t, h, http.MethodPost, "/collections", map[string]any{"name": "docs", "dimension": 3, "metric": "euclidean"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeJSON(t, rec)["success"])

	rec = do(t, h, http.MethodGet, "/collections", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cols := decodeJSON(t, rec)["collections"].([]any)
	require.Len(t, cols, 1)

	rec = do(t, h, http.MethodDelete, "/collections/docs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeJSON(t, rec)["success"])
}

func TestCreateCollectionRejectsUnknownMetric(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.inner.Handler, http.MethodPost, "/collections", map[string]any{"name": "docs", "dimension": 3, "metric": "manhattan"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsertAndSearchVector(t *testing.T) {
	s, m := newTestServer(t)
	_, err := m.Create("docs", defaultTestConfig())
	require.NoError(t, err)
	h := s.inner.Handler

	rec := do(t, h, http.MethodPost, "/insert", map[string]any{
		"collection": "docs",
		"vector":     map[string]any{"values": []float32{1, 0, 0}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeJSON(t, rec)["id"].(string)
	require.NotEmpty(t, id)

	rec = do(t, h, http.MethodPost, "/search", map[string]any{
		"collection": "docs",
		"query":      []float32{1, 0, 0},
		"top_k":      1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	results := decodeJSON(t, rec)["results"].([]any)
	require.Len(t, results, 1)
	hit := results[0].(map[string]any)
	assert.Equal(t, id, hit["id"])
}

func TestSearchOnUnknownCollectionReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.inner.Handler, http.MethodPost, "/search", map[string]any{"collection": "missing", "query": []float32{1}, "top_k": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPutDeleteVector(t *testing.T) {
	s, m := newTestServer(t)
	_, err := m.Create("docs", defaultTestConfig())
	require.NoError(t, err)
	h := s.inner.Handler

	id, err := m.Insert("docs", []float32{1, 2, 3}, "v1", nil)
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/vectors/docs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPut, "/vectors/docs/"+id, map[string]any{"values": []float32{4, 5, 6}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/vectors/docs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/vectors/docs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchInsertReportsCounts(t *testing.T) {
	s, m := newTestServer(t)
	_, err := m.Create("docs", defaultTestConfig())
	require.NoError(t, err)

	rec := do(t, s.inner.Handler, http.MethodPost, "/batch_insert", map[string]any{
		"collection": "docs",
		"vectors": []map[string]any{
			{"values": []float32{1, 2, 3}},
			{"values": []float32{4, 5, 6}},
			{"values": []float32{1, 2}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, float64(2), body["inserted_count"])
	assert.Equal(t, float64(3), body["total_received"])
}

func TestTenantFAQLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.inner.Handler

	rec := do(t, h, http.MethodPost, "/tenants/acme/namespaces", map[string]any{"namespace": "kb", "dimension": 3, "metric": "euclidean"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/tenants/acme/kb/faq", map[string]any{
		"id": "f1", "question": "Q?", "answer": "A.", "category": "x", "vector": []float32{1, 0, 0},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/tenants/acme/kb/search", map[string]any{"query": []float32{1, 0, 0}, "top_k": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	results := decodeJSON(t, rec)["results"].([]any)
	require.Len(t, results, 1)
	hit := results[0].(map[string]any)
	assert.Equal(t, "Q?", hit["question"])

	rec = do(t, h, http.MethodDelete, "/tenants/acme/kb/faq/f1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func defaultTestConfig() vectorindex.Config {
	return vectorindex.DefaultConfig(3, vectorindex.Euclidean)
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/diffsec/vectorcore/internal/apierr"
	"github.com/diffsec/vectorcore/internal/vectorindex"
)

func (s *Server) registerVectorRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /insert", s.handleInsert)
	mux.HandleFunc("POST /batch_insert", s.handleBatchInsert)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /batch_search", s.handleBatchSearch)
	mux.HandleFunc("POST /search_with_filter", s.handleSearchWithFilter)
	mux.HandleFunc("GET /vectors/{collection}/{id}", s.handleGetVector)
	mux.HandleFunc("PUT /vectors/{collection}/{id}", s.handlePutVector)
	mux.HandleFunc("DELETE /vectors/{collection}/{id}", s.handleDeleteVector)
}

type vectorPayload struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

type insertRequest struct {
	Collection string        `json:"collection"`
	Vector     vectorPayload `json:"vector"`
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.manager.Insert(req.Collection, req.Vector.Values, req.Vector.ID, req.Vector.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

type batchInsertRequest struct {
	Collection string          `json:"collection"`
	Vectors    []vectorPayload `json:"vectors"`
}

func (s *Server) handleBatchInsert(w http.ResponseWriter, r *http.Request) {
	var req batchInsertRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	records := make([]vectorindex.InsertRecord, len(req.Vectors))
	for i, v := range req.Vectors {
		records[i] = vectorindex.InsertRecord{ID: v.ID, Values: v.Values, Metadata: v.Metadata}
	}
	inserted, err := s.manager.BatchInsert(req.Collection, records)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"inserted_count": inserted,
		"total_received": len(req.Vectors),
	})
}

type searchRequest struct {
	Collection string    `json:"collection"`
	Query      []float32 `json:"query"`
	TopK       int       `json:"top_k"`
}

type searchHit struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func defaultTopK(topK int) int {
	if topK <= 0 {
		return 10
	}
	return topK
}

func toHits(results []vectorindex.SearchResult) []searchHit {
	hits := make([]searchHit, len(results))
	for i, r := range results {
		hits[i] = searchHit{ID: r.ID, Score: r.Distance, Metadata: r.Record.Metadata}
	}
	return hits
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	start := time.Now()
	results, err := s.manager.Search(req.Collection, req.Query, defaultTopK(req.TopK), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":        toHits(results),
		"search_time_ms": time.Since(start).Milliseconds(),
	})
}

type batchQueryPayload struct {
	Values []float32 `json:"values"`
}

type batchSearchRequest struct {
	Collection string              `json:"collection"`
	Queries    []batchQueryPayload `json:"queries"`
	TopK       int                 `json:"top_k"`
}

func (s *Server) handleBatchSearch(w http.ResponseWriter, r *http.Request) {
	var req batchSearchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	topK := defaultTopK(req.TopK)
	queries := make([]vectorindex.BatchQuery, len(req.Queries))
	for i, q := range req.Queries {
		queries[i] = vectorindex.BatchQuery{Values: q.Values, K: topK}
	}

	start := time.Now()
	results, err := s.manager.BatchSearch(r.Context(), req.Collection, queries)
	if err != nil {
		writeError(w, err)
		return
	}
	elapsed := time.Since(start)

	shaped := make([]map[string]any, len(results))
	for i, r := range results {
		shaped[i] = map[string]any{"results": toHits(r)}
	}

	avgMs := float64(0)
	if len(results) > 0 {
		avgMs = float64(elapsed.Milliseconds()) / float64(len(results))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":               shaped,
		"total_queries":         len(results),
		"total_time_ms":         elapsed.Milliseconds(),
		"avg_time_per_query_ms": avgMs,
	})
}

type searchWithFilterRequest struct {
	Collection string            `json:"collection"`
	Query      []float32         `json:"query"`
	TopK       int               `json:"top_k"`
	Filter     map[string]string `json:"filter"`
}

func (s *Server) handleSearchWithFilter(w http.ResponseWriter, r *http.Request) {
	var req searchWithFilterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	start := time.Now()
	results, err := s.manager.SearchFilter(req.Collection, req.Query, defaultTopK(req.TopK), 0, req.Filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":        toHits(results),
		"search_time_ms": time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleGetVector(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("collection"), r.PathValue("id")
	rec, err := s.manager.Get(collection, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": rec.ID, "values": rec.Values, "metadata": rec.Metadata})
}

type putVectorRequest struct {
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

// handlePutVector applies the spec's remove-then-insert update semantics.
func (s *Server) handlePutVector(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("collection"), r.PathValue("id")
	var req putVectorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := s.manager.Remove(collection, id); err != nil {
		writeError(w, err)
		return
	}
	newID, err := s.manager.Insert(collection, req.Values, id, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": newID})
}

func (s *Server) handleDeleteVector(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("collection"), r.PathValue("id")
	ok, err := s.manager.Remove(collection, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apierr.NotFound("vector %q not found in collection %q", id, collection))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

package httpapi

import (
	"net/http"

	"github.com/diffsec/vectorcore/internal/apierr"
	"github.com/diffsec/vectorcore/internal/tenant"
	"github.com/diffsec/vectorcore/internal/vectorindex"
)

func (s *Server) registerTenantRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /tenants/{tenant}/namespaces", s.handleListNamespaces)
	mux.HandleFunc("POST /tenants/{tenant}/namespaces", s.handleCreateNamespace)

	mux.HandleFunc("POST /tenants/{tenant}/{ns}/faq/bulk", s.handleBulkFAQ)
	mux.HandleFunc("POST /tenants/{tenant}/{ns}/faq", s.handleInsertFAQ)
	mux.HandleFunc("GET /tenants/{tenant}/{ns}/faq/{id}", s.handleGetFAQ)
	mux.HandleFunc("PUT /tenants/{tenant}/{ns}/faq/{id}", s.handlePutFAQ)
	mux.HandleFunc("DELETE /tenants/{tenant}/{ns}/faq/{id}", s.handleDeleteFAQ)

	mux.HandleFunc("POST /tenants/{tenant}/{ns}/search", s.handleNamespaceSearch)
	mux.HandleFunc("GET /tenants/{tenant}/{ns}/stats", s.handleNamespaceStats)

	mux.HandleFunc("POST /tenants/{tenant}/search", s.handleTenantSearch)
	mux.HandleFunc("GET /tenants/{tenant}/stats", s.handleTenantStats)
}

func (s *Server) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	writeJSON(w, http.StatusOK, map[string]any{"namespaces": s.tenants.ListNamespaces(tenantID)})
}

type createNamespaceRequest struct {
	Namespace string `json:"namespace"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
}

func (s *Server) handleCreateNamespace(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	var req createNamespaceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	metric := vectorindex.Euclidean
	if req.Metric != "" {
		parsed, ok := vectorindex.ParseMetric(req.Metric)
		if !ok {
			writeError(w, apierr.BadRequest("unknown metric %q", req.Metric))
			return
		}
		metric = parsed
	}

	created, err := s.tenants.CreateNamespace(tenantID, req.Namespace, req.Dimension, metric)
	if err != nil {
		writeError(w, err)
		return
	}
	if !created {
		writeError(w, apierr.Conflict("namespace %q already exists", req.Namespace))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func faqResponse(f tenant.FAQ) map[string]any {
	return map[string]any{
		"id":       f.ID,
		"question": f.Question,
		"answer":   f.Answer,
		"category": f.Category,
		"vector":   f.Vector,
	}
}

type faqRequest struct {
	ID       string    `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Category string    `json:"category"`
	Vector   []float32 `json:"vector"`
}

func (s *Server) handleInsertFAQ(w http.ResponseWriter, r *http.Request) {
	tenantID, ns := r.PathValue("tenant"), r.PathValue("ns")
	var req faqRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.tenants.InsertFAQ(tenantID, ns, req.ID, req.Question, req.Answer, req.Category, req.Vector)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

type bulkFAQRequest struct {
	Items []faqRequest `json:"items"`
}

func (s *Server) handleBulkFAQ(w http.ResponseWriter, r *http.Request) {
	tenantID, ns := r.PathValue("tenant"), r.PathValue("ns")
	var req bulkFAQRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	items := make([]tenant.FAQ, len(req.Items))
	for i, it := range req.Items {
		items[i] = tenant.FAQ{ID: it.ID, Question: it.Question, Answer: it.Answer, Category: it.Category, Vector: it.Vector}
	}
	inserted := s.tenants.BulkInsertFAQ(tenantID, ns, items)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"inserted_count": inserted,
		"total_received": len(items),
	})
}

func (s *Server) handleGetFAQ(w http.ResponseWriter, r *http.Request) {
	tenantID, ns, id := r.PathValue("tenant"), r.PathValue("ns"), r.PathValue("id")
	faq, err := s.tenants.GetFAQ(tenantID, ns, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, faqResponse(faq))
}

func (s *Server) handlePutFAQ(w http.ResponseWriter, r *http.Request) {
	tenantID, ns, id := r.PathValue("tenant"), r.PathValue("ns"), r.PathValue("id")
	var req faqRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.tenants.UpdateFAQ(tenantID, ns, id, req.Question, req.Answer, req.Category, req.Vector); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDeleteFAQ(w http.ResponseWriter, r *http.Request) {
	tenantID, ns, id := r.PathValue("tenant"), r.PathValue("ns"), r.PathValue("id")
	ok, err := s.tenants.DeleteFAQ(tenantID, ns, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apierr.NotFound("faq %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type namespaceSearchRequest struct {
	Query    []float32 `json:"query"`
	TopK     int       `json:"top_k"`
	Category string    `json:"category"`
}

func faqHits(results []tenant.FAQResult) []map[string]any {
	out := make([]map[string]any, len(results))
	for i, r := range results {
		hit := faqResponse(r.FAQ)
		hit["score"] = r.Distance
		out[i] = hit
	}
	return out
}

func (s *Server) handleNamespaceSearch(w http.ResponseWriter, r *http.Request) {
	tenantID, ns := r.PathValue("tenant"), r.PathValue("ns")
	var req namespaceSearchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	results, err := s.tenants.SearchFAQ(tenantID, ns, req.Query, defaultTopK(req.TopK), req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": faqHits(results)})
}

func (s *Server) handleNamespaceStats(w http.ResponseWriter, r *http.Request) {
	tenantID, ns := r.PathValue("tenant"), r.PathValue("ns")
	stats, err := s.tenants.NamespaceStats(tenantID, ns)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": stats.Count, "dimension": stats.Dimension, "metric": stats.Metric.String()})
}

type crossNamespaceSearchRequest struct {
	Query      []float32 `json:"query"`
	TopK       int       `json:"top_k"`
	Category   string    `json:"category"`
	Namespaces []string  `json:"namespaces"`
}

func (s *Server) handleTenantSearch(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	var req crossNamespaceSearchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	results, err := s.tenants.CrossNamespaceSearch(tenantID, req.Query, defaultTopK(req.TopK), req.Category, req.Namespaces)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": faqHits(results)})
}

func (s *Server) handleTenantStats(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	namespaces, total := s.tenants.AggregateStats(tenantID)
	writeJSON(w, http.StatusOK, map[string]any{"namespaces": namespaces, "total_count": total})
}

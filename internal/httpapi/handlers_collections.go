package httpapi

import (
	"net/http"

	"github.com/diffsec/vectorcore/internal/apierr"
	"github.com/diffsec/vectorcore/internal/vectorindex"
)

func (s *Server) registerCollectionRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /collections", s.handleListCollections)
	mux.HandleFunc("POST /collections", s.handleCreateCollection)
	mux.HandleFunc("DELETE /collections/{name}", s.handleDropCollection)
	mux.HandleFunc("GET /collections/{name}", s.handleCollectionStats)
	mux.HandleFunc("GET /stats/{name}", s.handleCollectionStats)
	mux.HandleFunc("GET /index/{name}", s.handleCollectionStats)
	mux.HandleFunc("GET /count/{name}", s.handleCount)
	mux.HandleFunc("POST /save", s.handleSave)
	mux.HandleFunc("POST /save_all", s.handleSaveAll)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"healthy": true, "version": serviceVersion})
}

type collectionSummary struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Count     int    `json:"count"`
	Metric    string `json:"metric"`
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	names := s.manager.List()
	summaries := make([]collectionSummary, 0, len(names))
	for _, name := range names {
		stats, err := s.manager.Stats(name)
		if err != nil {
			continue
		}
		summaries = append(summaries, collectionSummary{
			Name:      name,
			Dimension: stats.Dimension,
			Count:     stats.Count,
			Metric:    stats.Metric.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": summaries})
}

type createCollectionRequest struct {
	Name           string `json:"name"`
	Dimension      int    `json:"dimension"`
	Metric         string `json:"metric"`
	M              int    `json:"m"`
	EfConstruction int    `json:"ef_construction"`
	EfSearch       int    `json:"ef_search"`
	MaxElements    int    `json:"max_elements"`
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	metric, ok := vectorindex.ParseMetric(req.Metric)
	if !ok {
		writeError(w, apierr.BadRequest("unknown metric %q", req.Metric))
		return
	}

	// M/EfConstruction/EfSearch/MaxElements are left zero unless the request
	// explicitly set them; the manager fills the gaps from config.yaml's
	// defaults, falling further back to vectorindex's built-in constants.
	cfg := vectorindex.Config{Dimension: req.Dimension, Metric: metric}
	if req.M > 0 {
		cfg.M = req.M
	}
	if req.EfConstruction > 0 {
		cfg.EfConstruction = req.EfConstruction
	}
	if req.EfSearch > 0 {
		cfg.EfSearch = req.EfSearch
	}
	if req.MaxElements > 0 {
		cfg.MaxElements = req.MaxElements
	}

	created, err := s.manager.Create(req.Name, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	if !created {
		writeError(w, apierr.Conflict("collection %q already exists", req.Name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "collection created"})
}

func (s *Server) handleDropCollection(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	writeJSON(w, http.StatusOK, map[string]any{"success": s.manager.Drop(name)})
}

type statsResponse struct {
	Name           string `json:"name"`
	Count          int    `json:"count"`
	MemoryBytes    int64  `json:"memory_bytes"`
	Dimension      int    `json:"dimension"`
	Metric         string `json:"metric"`
	M              int    `json:"m"`
	EfConstruction int    `json:"ef_construction"`
	EfSearch       int    `json:"ef_search"`
	MaxElements    int    `json:"max_elements"`
}

func (s *Server) handleCollectionStats(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	stats, err := s.manager.Stats(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Name:           stats.Name,
		Count:          stats.Count,
		MemoryBytes:    stats.MemoryBytes,
		Dimension:      stats.Dimension,
		Metric:         stats.Metric.String(),
		M:              stats.M,
		EfConstruction: stats.EfConstruction,
		EfSearch:       stats.EfSearch,
		MaxElements:    stats.MaxElements,
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	stats, err := s.manager.Stats(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection": name, "count": stats.Count})
}

type saveRequest struct {
	Collection string `json:"collection"`
}

// handleSave matches the documented wire-level quirk: regardless of
// whether a specific collection is named, every collection is persisted.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	_ = decodeBody(r, &req) // body is optional; ignore decode failure on empty body

	if err := s.manager.SaveAll(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSaveAll(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.SaveAll(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

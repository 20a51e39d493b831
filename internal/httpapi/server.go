// Package httpapi is the synchronous HTTP/1.1 JSON request router: it
// parses requests, dispatches to the collection manager and tenant layer,
// and encodes responses.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/diffsec/vectorcore/internal/collections"
	"github.com/diffsec/vectorcore/internal/tenant"
)

const serviceVersion = "1.0.0"

// Server is the JSON API surface over a collection manager and tenant
// routing layer.
type Server struct {
	manager *collections.Manager
	tenants *tenant.Service
	inner   *http.Server
}

// NewServer builds the routed *http.Server, bound to addr, backed by
// manager. Socket timeouts are the spec-mandated 300s in each direction.
func NewServer(addr string, manager *collections.Manager) *Server {
	s := &Server{
		manager: manager,
		tenants: tenant.NewService(manager),
	}

	mux := http.NewServeMux()
	s.registerCollectionRoutes(mux)
	s.registerVectorRoutes(mux)
	s.registerTenantRoutes(mux)

	s.inner = &http.Server{
		Addr:         addr,
		Handler:      withMiddleware(mux),
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 300 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	err := s.inner.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting new connections and waits (bounded by ctx) for
// in-flight handlers to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

// withMiddleware wraps every response with the wire-level CORS header and
// connection-closed-after-response behavior, plus a structured completion
// log line carrying a per-request trace id. The JSON content type is set
// by writeJSON, not here.
func withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := uuid.NewString()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		r.Close = true

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.Info("request handled",
			slog.String("trace_id", traceID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

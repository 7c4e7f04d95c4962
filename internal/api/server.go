// Package api exposes the research pipeline and vendor store over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/vendor-research/internal/catalog"
	"github.com/sells-group/vendor-research/internal/pipeline"
	"github.com/sells-group/vendor-research/internal/resilience"
	"github.com/sells-group/vendor-research/internal/store"
)

const maxRequestBodySize = 1 << 20

// Deps holds what the handlers need. Pipeline and Breakers may be nil; the
// research routes then answer 503.
type Deps struct {
	Store       store.Store
	Pipeline    *pipeline.Orchestrator
	Catalog     *catalog.Catalog
	Breakers    *resilience.Registry
	CORSOrigins []string
	SweepDelay  time.Duration
}

// Server serves the vendor research API.
type Server struct {
	deps  Deps
	locks *pipeline.ScopeLocks
}

// New creates a Server. Handlers share the pipeline's scope locks so single
// invocations and sweeps never run one scope concurrently.
func New(deps Deps) *Server {
	locks := pipeline.NewScopeLocks()
	if deps.Pipeline != nil {
		locks = deps.Pipeline.Locks()
	}
	return &Server{deps: deps, locks: locks}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	origins := s.deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/research", s.handleResearch)
		r.Post("/research/sweep", s.handleSweep)
		r.Get("/catalog", s.handleCatalog)

		r.Get("/projects/{projectID}/vendors", s.handleListVendors)
		r.Get("/projects/{projectID}/vendors/export", s.handleExport)
		r.Patch("/vendors/{id}/status", s.handleVendorStatus)
		r.Post("/vendors/dedupe", s.handleDedupe)

		r.Get("/staging", s.handleListStaging)
		r.Get("/staging/{id}", s.handleGetStaging)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.deps.Breakers != nil {
		body["breakers"] = s.deps.Breakers.States()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalog == nil {
		writeError(w, http.StatusNotFound, "no category catalog loaded")
		return
	}
	phase := r.URL.Query().Get("phase")
	if phase == "" {
		writeJSON(w, http.StatusOK, s.deps.Catalog)
		return
	}
	p, ok := s.deps.Catalog.Phase(phase)
	if !ok {
		writeError(w, http.StatusNotFound, "phase not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// statusFor maps pipeline and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, pipeline.ErrConfig):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close() //nolint:errcheck
	return json.NewDecoder(r.Body).Decode(v)
}

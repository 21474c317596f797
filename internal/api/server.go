// Package api serves stored runs over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"goregime/domain/core"
	"goregime/ports"
)

// MaxListLimit caps the limit query parameter of the run listing.
const MaxListLimit = 500

// Server exposes a read-only view of the result store.
type Server struct {
	reader   ports.ReaderPort
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	router   *chi.Mux
}

// NewServer builds the router. A nil gatherer serves the default registry.
func NewServer(reader ports.ReaderPort, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		reader:   reader,
		gatherer: gatherer,
		logger:   logger,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
		r.Get("/{id}/values", s.handleListValues)
		r.Get("/{id}/inference", s.handleListRecords)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > MaxListLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(MaxListLimit))
			return
		}
		limit = n
	}

	runs, err := s.reader.ListRuns(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []ports.RunSummary{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.runID(w, r)
	if !ok {
		return
	}
	detail, err := s.reader.GetRun(r.Context(), runID)
	if err != nil {
		s.internalError(w, "get run", err)
		return
	}
	if detail == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleListValues(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.existingRun(w, r)
	if !ok {
		return
	}
	values, err := s.reader.ListValues(r.Context(), runID)
	if err != nil {
		s.internalError(w, "list values", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "values": values, "count": len(values)})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.existingRun(w, r)
	if !ok {
		return
	}
	records, err := s.reader.ListRecords(r.Context(), runID)
	if err != nil {
		s.internalError(w, "list records", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "records": records, "count": len(records)})
}

func (s *Server) runID(w http.ResponseWriter, r *http.Request) (core.RunID, bool) {
	runID, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return runID, true
}

// existingRun resolves the path id and answers 404 for unknown runs, so
// empty child listings always belong to a real run.
func (s *Server) existingRun(w http.ResponseWriter, r *http.Request) (core.RunID, bool) {
	runID, ok := s.runID(w, r)
	if !ok {
		return "", false
	}
	detail, err := s.reader.GetRun(r.Context(), runID)
	if err != nil {
		s.internalError(w, "get run", err)
		return "", false
	}
	if detail == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return "", false
	}
	return runID, true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("api request failed", zap.String("op", op), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

// Package api exposes audits over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"allycheck/internal/engine"
	"allycheck/internal/logging"
	"allycheck/internal/store"
	"allycheck/internal/types"
)

// Auditor runs one audit.
type Auditor interface {
	Run(ctx context.Context, req *types.AuditRequest) (*types.AuditResult, error)
}

// AuditReader reads stored audits.
type AuditReader interface {
	GetAudit(ctx context.Context, id string) (*types.AuditResult, error)
	ListAudits(ctx context.Context, limit int) ([]store.Summary, error)
}

// Options configures a Server.
type Options struct {
	MaxConcurrent int64 // audits running at once; further requests get 429
	MaxBodyBytes  int64
	Reader        AuditReader         // nil disables the read endpoints
	Gatherer      prometheus.Gatherer // nil disables /metrics
	Version       string
}

// Server handles the audit API.
type Server struct {
	auditor  Auditor
	reader   AuditReader
	sem      *semaphore.Weighted
	gatherer prometheus.Gatherer
	maxBody  int64
	version  string
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error kinds the server adds to the engine's.
const (
	kindBusy          = "too_many_requests"
	kindNotFound      = "not_found"
	kindStoreDisabled = "store_disabled"
	kindTooLarge      = "request_too_large"
)

// New returns a server around auditor.
func New(auditor Auditor, opts Options) *Server {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 << 20
	}
	return &Server{
		auditor:  auditor,
		reader:   opts.Reader,
		sem:      semaphore.NewWeighted(opts.MaxConcurrent),
		gatherer: opts.Gatherer,
		maxBody:  opts.MaxBodyBytes,
		version:  opts.Version,
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/audit", s.handleAudit)
		r.Get("/audit/{id}", s.handleGetAudit)
		r.Get("/audits", s.handleListAudits)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.API("%s %s -> %d in %v (request_id=%s)",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if !s.sem.TryAcquire(1) {
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusTooManyRequests, kindBusy, "too many audits in progress; retry shortly")
		return
	}
	defer s.sem.Release(1)

	var req types.AuditRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, kindTooLarge, "request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, string(engine.KindInvalidRequest), "invalid JSON body: "+err.Error())
		return
	}

	res, err := s.auditor.Run(r.Context(), &req)
	if err != nil {
		kind := engine.Classify(err)
		if kind.HTTPStatus() >= http.StatusInternalServerError {
			logging.APIError("Audit failed (%s): %v", kind, err)
		} else {
			logging.APIWarn("Audit rejected (%s): %v", kind, err)
		}
		writeError(w, kind.HTTPStatus(), string(kind), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		writeError(w, http.StatusNotImplemented, kindStoreDisabled, "audit storage is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	res, err := s.reader.GetAudit(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, "no audit with id "+id)
	case err != nil:
		logging.APIError("Failed to load audit %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, string(engine.KindInternal), "failed to load audit")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		writeError(w, http.StatusNotImplemented, kindStoreDisabled, "audit storage is not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, string(engine.KindInvalidRequest), "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	list, err := s.reader.ListAudits(r.Context(), limit)
	if err != nil {
		logging.APIError("Failed to list audits: %v", err)
		writeError(w, http.StatusInternalServerError, string(engine.KindInternal), "failed to list audits")
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": list})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.APIWarn("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

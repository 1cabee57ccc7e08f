package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/aggregator"
	"github.com/JakeFAU/job-aggregator/internal/config"
	"github.com/JakeFAU/job-aggregator/internal/job"
	"github.com/JakeFAU/job-aggregator/internal/metrics"
	"github.com/JakeFAU/job-aggregator/internal/store"
)

// SearchIDHeader carries the id of the search that produced a response.
const SearchIDHeader = "X-Search-ID"

const (
	searchPath   = "/search"
	maxBodyBytes = 1 << 20
)

// Searcher runs one aggregated search.
type Searcher interface {
	Search(ctx context.Context, p aggregator.Params) (aggregator.Result, error)
}

// Server wires HTTP handlers to the aggregator and the search history.
type Server struct {
	router   chi.Router
	searcher Searcher
	history  *SearchHandler
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. repo may be nil, in
// which case the history endpoints answer 503.
func NewServer(searcher Searcher, repo store.SearchRepository, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	s := &Server{
		searcher: searcher,
		history:  NewSearchHandler(repo, logger),
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if timeout := cfg.RequestTimeout(); timeout > 0 {
			r.Use(timeoutMiddleware(timeout))
		}
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post(searchPath, s.search)
		r.Route("/api/searches", func(r chi.Router) {
			r.Get("/", s.history.ListSearches)
			r.Route("/{search_id}", func(r chi.Router) {
				r.Get("/", s.history.GetSearch)
				r.Get("/sources", s.history.ListSearchSources)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "aggregator unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// SearchRequest is the POST /search body. Pointer fields distinguish an
// absent value from its zero value.
type SearchRequest struct {
	Query           *string `json:"query"`
	Location        *string `json:"location"`
	Remote          *bool   `json:"remote"`
	MaxResults      *int    `json:"maxResults"`
	IncludeScraping *bool   `json:"includeScraping"`
}

// SearchResponse is the POST /search body of a successful search.
type SearchResponse struct {
	Success bool               `json:"success"`
	Count   int                `json:"count"`
	Jobs    []job.Posting      `json:"jobs"`
	Sources aggregator.Summary `json:"sources"`
}

// SearchFailure is the POST /search body when no result is produced.
type SearchFailure struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Jobs    []job.Posting `json:"jobs"`
}

// NewSearchResponse renders a successful search.
func NewSearchResponse(res aggregator.Result) SearchResponse {
	jobs := res.Jobs
	if jobs == nil {
		jobs = []job.Posting{}
	}
	return SearchResponse{
		Success: true,
		Count:   len(jobs),
		Jobs:    jobs,
		Sources: res.Sources,
	}
}

// NewSearchFailure renders a failed search.
func NewSearchFailure(msg string) SearchFailure {
	return SearchFailure{Error: msg, Jobs: []job.Posting{}}
}

// Params resolves req against the configured defaults and validates it.
func (req SearchRequest) Params(cfg config.SearchConfig) (aggregator.Params, error) {
	p := aggregator.Params{
		Query:           valueOrDefault(req.Query, cfg.DefaultQuery),
		Location:        valueOrDefault(req.Location, cfg.DefaultLocation),
		Remote:          valueOrDefault(req.Remote, false),
		MaxResults:      valueOrDefault(req.MaxResults, cfg.DefaultMaxResults),
		IncludeScraping: valueOrDefault(req.IncludeScraping, cfg.DefaultIncludeScraping),
	}
	if p.MaxResults < 0 {
		return aggregator.Params{}, errors.New("maxResults must not be negative")
	}
	if cfg.MaxResultsLimit > 0 && p.MaxResults > cfg.MaxResultsLimit {
		return aggregator.Params{}, fmt.Errorf("maxResults must not exceed %d", cfg.MaxResultsLimit)
	}
	return p, nil
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, NewSearchFailure("invalid JSON"))
		return
	}
	params, err := req.Params(s.cfg.Search)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, NewSearchFailure(err.Error()))
		return
	}
	if s.searcher == nil {
		writeJSON(w, http.StatusServiceUnavailable, NewSearchFailure("aggregator unavailable"))
		return
	}

	res, err := s.searcher.Search(r.Context(), params)
	if res.SearchID != uuid.Nil {
		w.Header().Set(SearchIDHeader, res.SearchID.String())
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, aggregator.ErrInvalidParams) {
			status = http.StatusBadRequest
		}
		s.logger.Error("job search failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, status, NewSearchFailure(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, NewSearchResponse(res))
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", requestIDFromContext(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestIDFromContext(r.Context())),
						zap.Any("panic", rec),
					)
					writeFailure(w, r, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"success":false,"error":"request timed out","jobs":[]}`)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeFailure(w, r, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure keeps the search body shape for middleware errors on /search.
func writeFailure(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if r.URL.Path == searchPath {
		writeJSON(w, status, NewSearchFailure(msg))
		return
	}
	writeError(w, status, msg)
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/store"
)

const (
	defaultSearchLimit  = 50
	maxSearchLimit      = 500
	defaultSourcesLimit = 100
	maxSourcesLimit     = 1000
	historyTimeout      = 3 * time.Second
)

// SearchHandler exposes read-only search history endpoints.
type SearchHandler struct {
	repo    store.SearchRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewSearchHandler wires the repository and logger.
func NewSearchHandler(repo store.SearchRepository, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		repo:    repo,
		timeout: historyTimeout,
		logger:  logger,
	}
}

// ListSearches handles GET /api/searches?status=&limit=&offset=. It returns
// {"searches": [...]} newest first, 400 for invalid filters, 503 when the repo
// is unavailable, or 500 if the repository call fails.
func (h *SearchHandler) ListSearches(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "search history unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultSearchLimit, maxSearchLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := store.ListFilter{Limit: limit, Offset: offset}
	if statusParam := strings.TrimSpace(r.URL.Query().Get("status")); statusParam != "" {
		status, parseErr := parseStatus(statusParam)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		filter.Status = &status
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	runs, err := h.repo.ListSearches(ctx, filter)
	if err != nil {
		h.logger.Error("list searches failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list searches")
		return
	}
	if runs == nil {
		runs = []store.SearchRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": runs})
}

// GetSearch handles GET /api/searches/{search_id}. It returns {"search": {...}},
// 400 for malformed ids, 404 when the repository reports store.ErrNotFound,
// 503 if the repo is not initialized, or 500 otherwise.
func (h *SearchHandler) GetSearch(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "search history unavailable")
		return
	}
	searchID, err := parseSearchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.repo.GetSearch(ctx, searchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "search not found")
			return
		}
		h.logger.Error("get search failed", zap.Stringer("search_id", searchID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load search")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"search": run})
}

// ListSearchSources handles GET /api/searches/{search_id}/sources?limit=&offset=.
func (h *SearchHandler) ListSearchSources(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "search history unavailable")
		return
	}
	searchID, err := parseSearchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultSourcesLimit, maxSourcesLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.repo.ListSearchSources(ctx, searchID)
	if err != nil {
		h.logger.Error("list search sources failed", zap.Stringer("search_id", searchID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list search sources")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": window(stats, limit, offset)})
}

func parseSearchID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "search_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("search_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid search_id")
	}
	return id, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (store.RunStatus, error) {
	switch strings.ToLower(input) {
	case "running":
		return store.RunRunning, nil
	case "success", "ok":
		return store.RunSuccess, nil
	case "error", "failed", "failure":
		return store.RunError, nil
	default:
		return "", errors.New("invalid status")
	}
}

// window applies limit/offset to an already ordered slice.
func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/storage/memory"
	"github.com/JakeFAU/job-aggregator/internal/store"
)

func TestSearchHandlerListSearchesFiltersByStatus(t *testing.T) {
	t.Parallel()

	repo := memory.NewSearchStore()
	finished := uuid.New()
	seedSearch(t, repo, finished)
	running := uuid.New()
	require.NoError(t, repo.UpsertSearchStart(context.Background(), store.SearchStart{
		ID:        running,
		Query:     "rust",
		StartedAt: time.Now(),
	}))
	handler := NewSearchHandler(repo, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/searches?status=success&limit=10", nil)
	rec := httptest.NewRecorder()
	handler.ListSearches(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Searches []store.SearchRun `json:"searches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Searches, 1)
	require.Equal(t, finished, body.Searches[0].ID)
	require.Equal(t, 7, body.Searches[0].ResultCount)
}

func TestSearchHandlerListSearchesEmptyIsArray(t *testing.T) {
	t.Parallel()

	handler := NewSearchHandler(memory.NewSearchStore(), zap.NewNop())
	rec := httptest.NewRecorder()
	handler.ListSearches(rec, httptest.NewRequest(http.MethodGet, "/api/searches", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"searches":[]}`, rec.Body.String())
}

func TestSearchHandlerRejectsBadQuery(t *testing.T) {
	t.Parallel()

	handler := NewSearchHandler(memory.NewSearchStore(), zap.NewNop())
	for _, target := range []string{
		"/api/searches?status=paused",
		"/api/searches?limit=0",
		"/api/searches?limit=abc",
		"/api/searches?offset=-2",
	} {
		rec := httptest.NewRecorder()
		handler.ListSearches(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSearchHandlerGetSearch(t *testing.T) {
	t.Parallel()

	repo := memory.NewSearchStore()
	id := uuid.New()
	seedSearch(t, repo, id)
	handler := NewSearchHandler(repo, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.GetSearch(rec, withSearchIDParam(httptest.NewRequest(http.MethodGet, "/", nil), id.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Search store.SearchRun `json:"search"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, store.RunSuccess, body.Search.Status)
	require.NotNil(t, body.Search.FinishedAt)

	rec = httptest.NewRecorder()
	handler.GetSearch(rec, withSearchIDParam(httptest.NewRequest(http.MethodGet, "/", nil), "not-a-uuid"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.GetSearch(rec, withSearchIDParam(httptest.NewRequest(http.MethodGet, "/", nil), uuid.NewString()))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchHandlerGetSearchRepoError(t *testing.T) {
	t.Parallel()

	handler := NewSearchHandler(failingRepo{}, zap.NewNop())
	rec := httptest.NewRecorder()
	handler.GetSearch(rec, withSearchIDParam(httptest.NewRequest(http.MethodGet, "/", nil), uuid.NewString()))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	handler.ListSearches(rec, httptest.NewRequest(http.MethodGet, "/api/searches", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSearchHandlerListSearchSourcesPaginates(t *testing.T) {
	t.Parallel()

	repo := memory.NewSearchStore()
	id := uuid.New()
	seedSearch(t, repo, id)
	for _, name := range []string{"Adzuna", "Lever"} {
		require.NoError(t, repo.RecordSourceStats(context.Background(), store.SourceStats{
			SearchID: id,
			Source:   name,
			Phase:    "apis",
			Outcome:  "empty",
		}))
	}
	handler := NewSearchHandler(repo, zap.NewNop())

	req := withSearchIDParam(httptest.NewRequest(http.MethodGet, "/?limit=2&offset=1", nil), id.String())
	rec := httptest.NewRecorder()
	handler.ListSearchSources(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Sources []store.SourceStats `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sources, 2)

	req = withSearchIDParam(httptest.NewRequest(http.MethodGet, "/?limit=-1", nil), id.String())
	rec = httptest.NewRecorder()
	handler.ListSearchSources(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandlerWithoutRepo(t *testing.T) {
	t.Parallel()

	handler := NewSearchHandler(nil, nil)
	req := withSearchIDParam(httptest.NewRequest(http.MethodGet, "/", nil), uuid.NewString())

	for _, fn := range []http.HandlerFunc{handler.ListSearches, handler.GetSearch, handler.ListSearchSources} {
		rec := httptest.NewRecorder()
		fn(rec, req)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	}
}

func TestWindow(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4}
	require.Equal(t, []int{2, 3}, window(items, 2, 1))
	require.Equal(t, []int{4}, window(items, 10, 3))
	require.Empty(t, window(items, 10, 4))
}

// seedSearch stores a finished search with one source row.
func seedSearch(t *testing.T, repo *memory.SearchStore, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertSearchStart(ctx, store.SearchStart{
		ID:              id,
		Query:           "golang",
		Location:        "hyderabad",
		MaxResults:      20,
		IncludeScraping: true,
		StartedAt:       started,
	}))
	require.NoError(t, repo.RecordSourceStats(ctx, store.SourceStats{
		SearchID:   id,
		Source:     "Remotive",
		Phase:      "apis",
		Outcome:    "ok",
		Postings:   7,
		DurationMS: 120,
		UpdatedAt:  started.Add(time.Second),
	}))
	require.NoError(t, repo.CompleteSearch(ctx, id, started.Add(2*time.Second), store.RunSuccess, 7, nil))
}

func withSearchIDParam(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("search_id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type failingRepo struct{}

var errRepo = errors.New("database unavailable")

func (failingRepo) UpsertSearchStart(context.Context, store.SearchStart) error { return errRepo }

func (failingRepo) CompleteSearch(context.Context, uuid.UUID, time.Time, store.RunStatus, int, *string) error {
	return errRepo
}

func (failingRepo) RecordSourceStats(context.Context, store.SourceStats) error { return errRepo }

func (failingRepo) GetSearch(context.Context, uuid.UUID) (store.SearchRun, error) {
	return store.SearchRun{}, errRepo
}

func (failingRepo) ListSearches(context.Context, store.ListFilter) ([]store.SearchRun, error) {
	return nil, errRepo
}

func (failingRepo) ListSearchSources(context.Context, uuid.UUID) ([]store.SourceStats, error) {
	return nil, errRepo
}

// Package memory provides an in-process search history repository for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/job-aggregator/internal/store"
)

// SearchStore keeps search runs and per-source stats in maps.
type SearchStore struct {
	mu      sync.RWMutex
	runs    map[uuid.UUID]store.SearchRun
	sources map[uuid.UUID][]store.SourceStats
}

var _ store.SearchRepository = (*SearchStore)(nil)

// NewSearchStore constructs an empty SearchStore.
func NewSearchStore() *SearchStore {
	return &SearchStore{
		runs:    make(map[uuid.UUID]store.SearchRun),
		sources: make(map[uuid.UUID][]store.SourceStats),
	}
}

// UpsertSearchStart stores a running search. Replays refresh the request fields.
func (s *SearchStore) UpsertSearchStart(_ context.Context, start store.SearchStart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[start.ID]
	if !ok {
		run = store.SearchRun{
			ID:        start.ID,
			Status:    store.RunRunning,
			StartedAt: start.StartedAt.UTC(),
		}
	}
	run.Query = start.Query
	run.Location = start.Location
	run.Remote = start.Remote
	run.MaxResults = start.MaxResults
	run.IncludeScraping = start.IncludeScraping
	s.runs[start.ID] = run
	return nil
}

// CompleteSearch marks a search finished.
func (s *SearchStore) CompleteSearch(
	_ context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	count int,
	errMsg *string,
) error {
	if !status.Valid() {
		return fmt.Errorf("unknown run status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("complete search %s: %w", id, store.ErrNotFound)
	}
	finished := finishedAt.UTC()
	run.FinishedAt = &finished
	run.Status = status
	run.ResultCount = count
	run.ErrorMessage = copyString(errMsg)
	s.runs[id] = run
	return nil
}

// RecordSourceStats upserts stats keyed by (search, source).
func (s *SearchStore) RecordSourceStats(_ context.Context, stats store.SourceStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats.Note = copyString(stats.Note)
	list := s.sources[stats.SearchID]
	for i := range list {
		if list[i].Source == stats.Source {
			list[i] = stats
			return nil
		}
	}
	s.sources[stats.SearchID] = append(list, stats)
	return nil
}

// GetSearch returns one run or store.ErrNotFound.
func (s *SearchStore) GetSearch(_ context.Context, id uuid.UUID) (store.SearchRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return store.SearchRun{}, store.ErrNotFound
	}
	return run, nil
}

// ListSearches returns runs newest first.
func (s *SearchStore) ListSearches(_ context.Context, filter store.ListFilter) ([]store.SearchRun, error) {
	s.mu.RLock()
	runs := make([]store.SearchRun, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Status != nil && run.Status != *filter.Status {
			continue
		}
		runs = append(runs, run)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID.String() > runs[j].ID.String()
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return page(runs, filter.Limit, filter.Offset), nil
}

// ListSearchSources returns stats in the order they were first recorded.
func (s *SearchStore) ListSearchSources(_ context.Context, id uuid.UUID) ([]store.SourceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.SourceStats, len(s.sources[id]))
	copy(out, s.sources[id])
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("search record not found")

// RunStatus mirrors the search_runs status column.
type RunStatus string

// Search run statuses persisted in search_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunRunning, RunSuccess, RunError:
		return true
	default:
		return false
	}
}

// SearchStart describes a search at the moment it begins.
type SearchStart struct {
	ID              uuid.UUID
	Query           string
	Location        string
	Remote          bool
	MaxResults      int
	IncludeScraping bool
	StartedAt       time.Time
}

// SearchRun models the search_runs table for API responses.
type SearchRun struct {
	ID              uuid.UUID  `json:"id"`
	Query           string     `json:"query"`
	Location        string     `json:"location"`
	Remote          bool       `json:"remote"`
	MaxResults      int        `json:"maxResults"`
	IncludeScraping bool       `json:"includeScraping"`
	Status          RunStatus  `json:"status"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
	ResultCount     int        `json:"resultCount"`
	// ErrorMessage optionally stores the failure reason.
	ErrorMessage *string `json:"error,omitempty"`
}

// SourceStats captures one adapter's contribution to a search.
type SourceStats struct {
	SearchID   uuid.UUID `json:"searchId"`
	Source     string    `json:"source"`
	Phase      string    `json:"phase"`
	Outcome    string    `json:"outcome"`
	Postings   int       `json:"postings"`
	DurationMS int64     `json:"durationMs"`
	Note       *string   `json:"note,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ListFilter narrows ListSearches.
type ListFilter struct {
	Status *RunStatus
	Limit  int
	Offset int
}

// SearchRepository persists search history.
type SearchRepository interface {
	// UpsertSearchStart inserts (or idempotently updates) a running search.
	UpsertSearchStart(ctx context.Context, start SearchStart) error
	// CompleteSearch marks the run finished with the provided status, result size and error.
	CompleteSearch(ctx context.Context, id uuid.UUID, finishedAt time.Time, status RunStatus, count int, errMsg *string) error
	// RecordSourceStats upserts one adapter's stats keyed by (search, source).
	RecordSourceStats(ctx context.Context, stats SourceStats) error

	// GetSearch loads a single search run or returns ErrNotFound.
	GetSearch(ctx context.Context, id uuid.UUID) (SearchRun, error)
	// ListSearches returns runs newest first.
	ListSearches(ctx context.Context, filter ListFilter) ([]SearchRun, error)
	// ListSearchSources returns per-source stats for one search.
	ListSearchSources(ctx context.Context, id uuid.UUID) ([]SourceStats, error)
}

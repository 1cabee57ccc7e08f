// Package postgres provides the Postgres-backed search history repository.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/job-aggregator/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it in tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// SearchStore implements store.SearchRepository using Postgres.
type SearchStore struct {
	pool pool
}

var _ store.SearchRepository = (*SearchStore)(nil)

// NewSearchStore connects a pool using cfg.
func NewSearchStore(ctx context.Context, cfg Config) (*SearchStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &SearchStore{pool: p}, nil
}

// NewSearchStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewSearchStoreWithPool(p pool) (*SearchStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	return &SearchStore{pool: p}, nil
}

// Close closes the underlying connection pool.
func (s *SearchStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the search tables when they do not exist.
func (s *SearchStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertSearchStart inserts a running search. Replays of the same start refresh
// the request fields without touching the status.
func (s *SearchStore) UpsertSearchStart(ctx context.Context, start store.SearchStart) error {
	query := `
		INSERT INTO search_runs (id, query, location, remote, max_results, include_scraping, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET query = EXCLUDED.query,
			location = EXCLUDED.location,
			remote = EXCLUDED.remote,
			max_results = EXCLUDED.max_results,
			include_scraping = EXCLUDED.include_scraping;
	`
	_, err := s.pool.Exec(ctx, query,
		start.ID,
		start.Query,
		start.Location,
		start.Remote,
		start.MaxResults,
		start.IncludeScraping,
		string(store.RunRunning),
		start.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert search start: %w", err)
	}
	return nil
}

// CompleteSearch marks a search finished.
func (s *SearchStore) CompleteSearch(
	ctx context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	count int,
	errMsg *string,
) error {
	if !status.Valid() {
		return fmt.Errorf("unknown run status %q", status)
	}
	query := `
		UPDATE search_runs
		SET finished_at = $1, status = $2, result_count = $3, error_message = $4
		WHERE id = $5;
	`
	tag, err := s.pool.Exec(ctx, query, finishedAt, string(status), count, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to complete search: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete search %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// RecordSourceStats upserts one adapter's stats keyed by (search_id, source).
func (s *SearchStore) RecordSourceStats(ctx context.Context, stats store.SourceStats) error {
	query := `
		INSERT INTO search_sources (search_id, source, phase, outcome, postings, duration_ms, note, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (search_id, source) DO UPDATE
		SET phase = EXCLUDED.phase,
			outcome = EXCLUDED.outcome,
			postings = EXCLUDED.postings,
			duration_ms = EXCLUDED.duration_ms,
			note = EXCLUDED.note,
			updated_at = EXCLUDED.updated_at;
	`
	_, err := s.pool.Exec(ctx, query,
		stats.SearchID,
		stats.Source,
		stats.Phase,
		stats.Outcome,
		stats.Postings,
		stats.DurationMS,
		stats.Note,
		stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record source stats: %w", err)
	}
	return nil
}

const searchColumns = `id, query, location, remote, max_results, include_scraping, status,
		started_at, finished_at, result_count, error_message`

// GetSearch retrieves a single search run by its ID.
func (s *SearchStore) GetSearch(ctx context.Context, id uuid.UUID) (store.SearchRun, error) {
	query := `SELECT ` + searchColumns + ` FROM search_runs WHERE id = $1;`
	run, err := scanSearch(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.SearchRun{}, store.ErrNotFound
		}
		return store.SearchRun{}, fmt.Errorf("failed to get search: %w", err)
	}
	return run, nil
}

// ListSearches retrieves search runs newest first, optionally filtered by status.
func (s *SearchStore) ListSearches(ctx context.Context, filter store.ListFilter) ([]store.SearchRun, error) {
	var status *string
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}
	query := `SELECT ` + searchColumns + `
		FROM search_runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;`
	rows, err := s.pool.Query(ctx, query, status, clampLimit(filter.Limit), max(filter.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	runs := []store.SearchRun{}
	for rows.Next() {
		run, err := scanSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate searches: %w", err)
	}
	return runs, nil
}

// ListSearchSources retrieves per-source stats for one search in phase order.
func (s *SearchStore) ListSearchSources(ctx context.Context, id uuid.UUID) ([]store.SourceStats, error) {
	query := `
		SELECT search_id, source, phase, outcome, postings, duration_ms, note, updated_at
		FROM search_sources
		WHERE search_id = $1
		ORDER BY updated_at ASC, source ASC;
	`
	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list search sources: %w", err)
	}
	defer rows.Close()

	stats := []store.SourceStats{}
	for rows.Next() {
		var stat store.SourceStats
		err := rows.Scan(
			&stat.SearchID,
			&stat.Source,
			&stat.Phase,
			&stat.Outcome,
			&stat.Postings,
			&stat.DurationMS,
			&stat.Note,
			&stat.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source stats row: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search sources: %w", err)
	}
	return stats, nil
}

func scanSearch(row pgx.Row) (store.SearchRun, error) {
	var (
		run    store.SearchRun
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.Query,
		&run.Location,
		&run.Remote,
		&run.MaxResults,
		&run.IncludeScraping,
		&status,
		&run.StartedAt,
		&run.FinishedAt,
		&run.ResultCount,
		&run.ErrorMessage,
	)
	if err != nil {
		return store.SearchRun{}, err
	}
	run.Status = store.RunStatus(status)
	return run, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/progress"
	"github.com/JakeFAU/job-aggregator/internal/store"
)

// StoreSink persists search history via a store.SearchRepository.
type StoreSink struct {
	repo   store.SearchRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.SearchRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume applies the batch in order and returns the first repository error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		if err := s.apply(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) apply(ctx context.Context, evt progress.Event) error {
	id := evt.SearchUUID()
	switch evt.Stage {
	case progress.StageSearchStart:
		err := s.repo.UpsertSearchStart(ctx, store.SearchStart{
			ID:              id,
			Query:           evt.Query,
			Location:        evt.Location,
			Remote:          evt.Remote,
			MaxResults:      evt.MaxResults,
			IncludeScraping: evt.Scraping,
			StartedAt:       evt.TS,
		})
		if err != nil {
			return fmt.Errorf("upsert search start: %w", err)
		}
	case progress.StageSourceDone:
		err := s.repo.RecordSourceStats(ctx, store.SourceStats{
			SearchID:   id,
			Source:     evt.Source,
			Phase:      evt.Phase,
			Outcome:    string(evt.Outcome),
			Postings:   evt.Count,
			DurationMS: evt.Dur.Milliseconds(),
			Note:       optional(evt.Note),
			UpdatedAt:  evt.TS,
		})
		if err != nil {
			return fmt.Errorf("record source stats: %w", err)
		}
	case progress.StageSearchDone:
		if err := s.repo.CompleteSearch(ctx, id, evt.TS, store.RunSuccess, evt.Count, nil); err != nil {
			return fmt.Errorf("complete search: %w", err)
		}
	case progress.StageSearchError:
		if err := s.repo.CompleteSearch(ctx, id, evt.TS, store.RunError, evt.Count, optional(evt.Note)); err != nil {
			return fmt.Errorf("complete search: %w", err)
		}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

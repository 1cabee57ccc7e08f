package sinks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/progress"
)

// Publisher sends a payload to a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// SearchCompleted is the notification published when a search finishes.
type SearchCompleted struct {
	SearchID   string          `json:"searchId"`
	Status     string          `json:"status"`
	Query      string          `json:"query,omitempty"`
	Location   string          `json:"location,omitempty"`
	Count      int             `json:"count"`
	DurationMS int64           `json:"durationMs"`
	Error      string          `json:"error,omitempty"`
	FinishedAt time.Time       `json:"finishedAt"`
	Sources    []SourceOutcome `json:"sources"`
}

// SourceOutcome summarizes one adapter inside SearchCompleted.
type SourceOutcome struct {
	Source   string `json:"source"`
	Outcome  string `json:"outcome"`
	Postings int    `json:"postings"`
}

// PubSubSink publishes one SearchCompleted message per finished search. It
// accumulates SOURCE_DONE events across batches until the search ends.
type PubSubSink struct {
	publisher Publisher
	topic     string
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[[16]byte]*SearchCompleted
}

// NewPubSubSink builds a sink that publishes to topic.
func NewPubSubSink(publisher Publisher, topic string, logger *zap.Logger) *PubSubSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubSubSink{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
		pending:   make(map[[16]byte]*SearchCompleted),
	}
}

// Consume folds the batch into pending summaries and publishes finished ones.
func (s *PubSubSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	var ready []*SearchCompleted
	s.mu.Lock()
	for _, evt := range batch {
		summary := s.pendingFor(evt)
		switch evt.Stage {
		case progress.StageSearchStart:
			summary.Query = evt.Query
			summary.Location = evt.Location
		case progress.StageSourceDone:
			summary.Sources = append(summary.Sources, SourceOutcome{
				Source:   evt.Source,
				Outcome:  string(evt.Outcome),
				Postings: evt.Count,
			})
		case progress.StageSearchDone, progress.StageSearchError:
			summary.Status = "success"
			if evt.Stage == progress.StageSearchError {
				summary.Status = "error"
				summary.Error = evt.Note
			}
			summary.Count = evt.Count
			summary.DurationMS = evt.Dur.Milliseconds()
			summary.FinishedAt = evt.TS.UTC()
			ready = append(ready, summary)
			delete(s.pending, evt.SearchID)
		}
	}
	s.mu.Unlock()

	for _, summary := range ready {
		id, err := s.publisher.Publish(ctx, s.topic, summary)
		if err != nil {
			return fmt.Errorf("publish search %s: %w", summary.SearchID, err)
		}
		s.logger.Debug("search summary published", zap.String("search_id", summary.SearchID), zap.String("message_id", id))
	}
	return nil
}

func (s *PubSubSink) pendingFor(evt progress.Event) *SearchCompleted {
	summary, ok := s.pending[evt.SearchID]
	if !ok {
		summary = &SearchCompleted{SearchID: evt.SearchUUID().String(), Sources: []SourceOutcome{}}
		s.pending[evt.SearchID] = summary
	}
	return summary
}

// Close drops summaries of searches that never finished.
func (s *PubSubSink) Close(context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.pending); n > 0 {
		s.logger.Warn("discarding unfinished search summaries", zap.Int("count", n))
	}
	s.pending = make(map[[16]byte]*SearchCompleted)
	return nil
}

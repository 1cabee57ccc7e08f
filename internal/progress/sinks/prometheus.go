package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/job-aggregator/internal/progress"
)

// PrometheusSink exports search progress metrics via Prometheus. It owns the
// collectors for searches started/completed/running and per-source outcomes.
type PrometheusSink struct {
	searchesStarted   prometheus.Counter
	searchesCompleted *prometheus.CounterVec
	searchesRunning   prometheus.Gauge
	searchResults     prometheus.Histogram

	sourceOutcomes *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec

	tracker *searchTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		searchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "search_progress_started_total",
			Help: "Total searches that have started.",
		}),
		searchesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_progress_completed_total",
			Help: "Total searches completed partitioned by result.",
		}, []string{"result"}),
		searchesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "search_progress_running",
			Help: "Current number of running searches.",
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_progress_result_count",
			Help:    "Postings returned per completed search.",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
		}),
		sourceOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_progress_source_outcomes_total",
			Help: "Source runs partitioned by source, phase and outcome.",
		}, []string{"source", "phase", "outcome"}),
		sourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "search_progress_source_duration_seconds",
			Help:    "Source run duration partitioned by phase.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"phase"}),
		tracker: newSearchTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.searchesStarted,
		s.searchesCompleted,
		s.searchesRunning,
		s.searchResults,
		s.sourceOutcomes,
		s.sourceDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSearchStart:
		s.searchesStarted.Inc()
		if s.tracker.start(evt.SearchID) {
			s.searchesRunning.Inc()
		}
	case progress.StageSearchDone:
		s.searchesCompleted.WithLabelValues("success").Inc()
		s.searchResults.Observe(float64(evt.Count))
		s.finish(evt)
	case progress.StageSearchError:
		s.searchesCompleted.WithLabelValues("error").Inc()
		s.finish(evt)
	case progress.StageSourceDone:
		phase := evt.Phase
		if phase == "" {
			phase = "unknown"
		}
		s.sourceOutcomes.WithLabelValues(evt.Source, phase, string(evt.Outcome)).Inc()
		if evt.Dur > 0 {
			s.sourceDuration.WithLabelValues(phase).Observe(evt.Dur.Seconds())
		}
	}
}

func (s *PrometheusSink) finish(evt progress.Event) {
	if s.tracker.complete(evt.SearchID) {
		s.searchesRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type searchTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newSearchTracker() *searchTracker {
	return &searchTracker{running: make(map[[16]byte]struct{})}
}

func (t *searchTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *searchTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

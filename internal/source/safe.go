package source

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/clock"
	"github.com/JakeFAU/job-aggregator/internal/clock/system"
	"github.com/JakeFAU/job-aggregator/internal/job"
	"github.com/JakeFAU/job-aggregator/internal/metrics"
)

// Guarded wraps an Adapter so that errors and panics become empty results.
type Guarded struct {
	adapter Adapter
	logger  *zap.Logger
	clock   clock.Clock
}

// Safe guards a. A nil logger discards logs and a nil clock uses wall time.
func Safe(a Adapter, logger *zap.Logger, clk clock.Clock) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = system.New()
	}
	return &Guarded{
		adapter: a,
		logger:  logger.With(zap.String("source", a.Descriptor().Name)),
		clock:   clk,
	}
}

// Descriptor returns the wrapped adapter's descriptor.
func (g *Guarded) Descriptor() Descriptor {
	return g.adapter.Descriptor()
}

// Fetch runs the adapter and returns its postings, empty on any failure.
func (g *Guarded) Fetch(ctx context.Context, req Request) []job.Posting {
	return g.Run(ctx, req).Postings
}

// Run executes the adapter and reports how it went. The returned postings are
// normalized, stamped with the source name, and capped at req.MaxResults.
func (g *Guarded) Run(ctx context.Context, req Request) (report Report) {
	name := g.adapter.Descriptor().Name
	start := g.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			report = Report{Postings: []job.Posting{}, Outcome: OutcomeError, Err: fmt.Errorf("panic: %v", r)}
			g.logger.Error("source panicked", zap.Any("panic", r))
		}
		report.Elapsed = g.clock.Now().Sub(start)
		if report.Elapsed < 0 {
			report.Elapsed = 0
		}
		metrics.ObserveSourceFetch(name, string(report.Outcome), len(report.Postings), report.Elapsed)
	}()

	postings, err := g.adapter.Search(ctx, req)
	switch {
	case errors.Is(err, ErrMissingCredential):
		g.logger.Warn("source skipped", zap.Error(err))
		return Report{Postings: []job.Posting{}, Outcome: OutcomeSkipped, Err: err}
	case err != nil:
		g.logger.Warn("source failed", zap.Error(err))
		return Report{Postings: []job.Posting{}, Outcome: OutcomeError, Err: err}
	}

	if req.MaxResults > 0 && len(postings) > req.MaxResults {
		postings = postings[:req.MaxResults]
	}
	if postings == nil {
		postings = []job.Posting{}
	}
	postings = job.NormalizeAll(postings, name, g.clock.Now())
	outcome := OutcomeOK
	if len(postings) == 0 {
		outcome = OutcomeEmpty
	}
	g.logger.Debug("source finished", zap.Int("postings", len(postings)))
	return Report{Postings: postings, Outcome: outcome}
}

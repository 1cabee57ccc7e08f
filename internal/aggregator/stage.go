package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/job-aggregator/internal/job"
	"github.com/JakeFAU/job-aggregator/internal/progress"
	"github.com/JakeFAU/job-aggregator/internal/source"
)

// runner is implemented by guarded sources that report outcomes.
type runner interface {
	Run(ctx context.Context, req source.Request) source.Report
}

// searchRun holds the state of one Search call.
type searchRun struct {
	agg      *Aggregator
	logger   *zap.Logger
	searchID [16]byte
	req      source.Request

	session      Session
	shutdownOnce sync.Once
}

// stage runs every source of st concurrently and waits for all of them. A
// panic or stage-wide failure is logged and the stage contributes nothing.
func (r *searchRun) stage(ctx context.Context, st source.Stage, sources []source.Source) (report StageReport, postings []job.Posting) {
	report = StageReport{Stage: st, Ran: true}
	logger := r.logger.With(zap.String("stage", st.String()))

	ctx, span := r.agg.tracer.Start(ctx, "aggregator.stage", trace.WithAttributes(
		attribute.String("stage", st.String()),
		attribute.Int("stage.sources", len(sources)),
	))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			report.Err = fmt.Errorf("stage %s panicked: %v", st, rec)
			postings = nil
		}
		if report.Err != nil {
			report.Postings = 0
			logger.Error("stage failed", zap.Error(report.Err))
			span.RecordError(report.Err)
			span.SetStatus(codes.Error, report.Err.Error())
			return
		}
		span.SetAttributes(attribute.Int("stage.postings", report.Postings))
		logger.Info("stage finished", zap.Int("postings", report.Postings))
	}()

	if len(sources) == 0 {
		return report, nil
	}
	if r.agg.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.agg.stageTimeout)
		defer cancel()
	}
	if err := r.prepare(ctx, sources); err != nil {
		report.Err = err
		for _, s := range sources {
			report.Sources = append(report.Sources, SourceReport{Name: s.Descriptor().Name, Outcome: source.OutcomeError, Err: err})
			r.sourceDone(st, s.Descriptor().Name, source.Report{Outcome: source.OutcomeError, Err: err})
		}
		return report, nil
	}

	reports := make([]source.Report, len(sources))
	var g errgroup.Group
	for i, s := range sources {
		g.Go(func() error {
			reports[i] = r.runSource(ctx, st, s)
			return nil
		})
	}
	_ = g.Wait()

	for i, s := range sources {
		rep := reports[i]
		name := s.Descriptor().Name
		report.Sources = append(report.Sources, SourceReport{
			Name:     name,
			Outcome:  rep.Outcome,
			Postings: len(rep.Postings),
			Elapsed:  rep.Elapsed,
			Err:      rep.Err,
		})
		postings = append(postings, rep.Postings...)
	}
	report.Postings = len(postings)
	return report, postings
}

// prepare starts the browser up front for stages made only of rendered
// sources, so a launch failure fails the stage once instead of per adapter.
func (r *searchRun) prepare(ctx context.Context, sources []source.Source) error {
	for _, s := range sources {
		if s.Descriptor().Transport != source.TransportBrowser {
			return nil
		}
	}
	if r.session == nil {
		return errors.New("browser rendering is disabled")
	}
	if err := r.session.EnsureRunning(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	return nil
}

func (r *searchRun) runSource(ctx context.Context, st source.Stage, s source.Source) (rep source.Report) {
	desc := s.Descriptor()
	ctx, span := r.agg.tracer.Start(ctx, "aggregator.source", trace.WithAttributes(
		attribute.String("source", desc.Name),
		attribute.String("source.transport", string(desc.Transport)),
	))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			rep = source.Report{Postings: []job.Posting{}, Outcome: source.OutcomeError, Err: fmt.Errorf("panic: %v", rec)}
		}
		if rep.Err != nil {
			span.RecordError(rep.Err)
		}
		span.SetAttributes(
			attribute.String("source.outcome", string(rep.Outcome)),
			attribute.Int("source.postings", len(rep.Postings)),
		)
		r.sourceDone(st, desc.Name, rep)
	}()

	if gr, ok := s.(runner); ok {
		rep = gr.Run(ctx, r.req)
	} else {
		start := r.agg.clock.Now()
		rep.Postings = s.Fetch(ctx, r.req)
		rep.Elapsed = nonNegative(r.agg.clock.Now().Sub(start))
		rep.Outcome = source.OutcomeOK
		if len(rep.Postings) == 0 {
			rep.Outcome = source.OutcomeEmpty
		}
	}
	if rep.Postings == nil {
		rep.Postings = []job.Posting{}
	}
	if len(rep.Postings) > r.req.MaxResults {
		rep.Postings = rep.Postings[:r.req.MaxResults]
	}
	return rep
}

func (r *searchRun) sourceDone(st source.Stage, name string, rep source.Report) {
	evt := progress.Event{
		SearchID: r.searchID,
		Stage:    progress.StageSourceDone,
		Source:   name,
		Phase:    st.String(),
		Outcome:  progress.Outcome(rep.Outcome),
		Count:    len(rep.Postings),
		Dur:      nonNegative(rep.Elapsed),
	}
	if rep.Err != nil {
		evt.Note = rep.Err.Error()
	}
	r.agg.emit(evt)
}

// shutdown stops the session once, after every stage has finished.
func (r *searchRun) shutdown() {
	r.shutdownOnce.Do(func() {
		if r.session == nil {
			return
		}
		if err := r.session.Shutdown(); err != nil {
			r.logger.Warn("browser shutdown failed", zap.Error(err))
		}
	})
}

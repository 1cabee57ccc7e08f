package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	googleuuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/clock"
	"github.com/JakeFAU/job-aggregator/internal/clock/system"
	"github.com/JakeFAU/job-aggregator/internal/dedup"
	"github.com/JakeFAU/job-aggregator/internal/id/uuid"
	"github.com/JakeFAU/job-aggregator/internal/job"
	"github.com/JakeFAU/job-aggregator/internal/metrics"
	"github.com/JakeFAU/job-aggregator/internal/progress"
	"github.com/JakeFAU/job-aggregator/internal/source"
)

const instrumentationName = "github.com/JakeFAU/job-aggregator/internal/aggregator"

// ErrInvalidParams is returned for parameters Search cannot run with.
var ErrInvalidParams = errors.New("invalid search parameters")

// Session is the run-scoped browser the rendered sources share.
type Session interface {
	source.Browser
	Shutdown() error
}

// Sources lists the guarded adapters of one stage in registration order.
type Sources interface {
	Stage(s source.Stage) []source.Source
}

// IDGenerator issues search identifiers.
type IDGenerator interface {
	NewRawID() (googleuuid.UUID, error)
}

// Config wires an Aggregator.
type Config struct {
	Sources Sources
	// NewSession creates a fresh browser session for one search. Nil disables rendering.
	NewSession func() Session
	Emitter    progress.Emitter
	Clock      clock.Clock
	IDs        IDGenerator
	Logger     *zap.Logger
	// StageTimeout bounds each stage when positive. Zero leaves stages unbounded.
	StageTimeout time.Duration
}

// Params describes one search.
type Params struct {
	Query           string
	Location        string
	Remote          bool
	MaxResults      int
	IncludeScraping bool
}

// Summary counts the configured adapters per category.
type Summary struct {
	APIs                int `json:"apis"`
	ModernSources       int `json:"modernSources"`
	TraditionalScrapers int `json:"traditionalScrapers"`
	Total               int `json:"total"`
}

// SourceReport records one adapter run.
type SourceReport struct {
	Name     string
	Outcome  source.Outcome
	Postings int
	Elapsed  time.Duration
	Err      error
}

// StageReport records one stage.
type StageReport struct {
	Stage    source.Stage
	Ran      bool
	Err      error
	Postings int
	Sources  []SourceReport
}

// Result is the outcome of a search.
type Result struct {
	SearchID googleuuid.UUID
	Jobs     []job.Posting
	Sources  Summary
	Stages   []StageReport
	// Quota is the per-source cap applied to every adapter.
	Quota int
}

// Aggregator fans a search out to the registered sources.
type Aggregator struct {
	sources      Sources
	newSession   func() Session
	emitter      progress.Emitter
	clock        clock.Clock
	ids          IDGenerator
	logger       *zap.Logger
	stageTimeout time.Duration

	tracer  trace.Tracer
	results otelmetric.Int64Histogram
}

// New validates cfg and builds an Aggregator.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Sources == nil {
		return nil, errors.New("aggregator requires sources")
	}
	if cfg.Emitter == nil {
		cfg.Emitter = progress.NopEmitter{}
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.IDs == nil {
		cfg.IDs = uuid.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	results, err := otel.Meter(instrumentationName).Int64Histogram(
		"aggregator.search.results",
		otelmetric.WithDescription("Postings returned per search after dedup and truncation."),
	)
	if err != nil {
		return nil, fmt.Errorf("create results histogram: %w", err)
	}
	return &Aggregator{
		sources:      cfg.Sources,
		newSession:   cfg.NewSession,
		emitter:      cfg.Emitter,
		clock:        cfg.Clock,
		ids:          cfg.IDs,
		logger:       cfg.Logger,
		stageTimeout: cfg.StageTimeout,
		tracer:       otel.Tracer(instrumentationName),
		results:      results,
	}, nil
}

// Quota is the per-source result cap: ceil(total/active), or 0 when either is not positive.
func Quota(total, active int) int {
	if total <= 0 || active <= 0 {
		return 0
	}
	return (total-1)/active + 1
}

// Search runs every stage and returns the merged, deduplicated postings.
func (a *Aggregator) Search(ctx context.Context, p Params) (res Result, err error) {
	if p.MaxResults < 0 {
		return Result{}, fmt.Errorf("%w: maxResults must be >= 0", ErrInvalidParams)
	}
	id, err := a.ids.NewRawID()
	if err != nil {
		return Result{}, fmt.Errorf("search id: %w", err)
	}
	searchID := progress.UUIDToBytes(id)
	logger := a.logger.With(zap.String("search_id", id.String()))
	start := a.clock.Now()

	ctx, span := a.tracer.Start(ctx, "aggregator.search", trace.WithAttributes(
		attribute.String("search.id", id.String()),
		attribute.String("search.query", p.Query),
		attribute.String("search.location", p.Location),
		attribute.Int("search.max_results", p.MaxResults),
		attribute.Bool("search.include_scraping", p.IncludeScraping),
	))
	defer span.End()

	a.emit(progress.Event{
		SearchID:   searchID,
		Stage:      progress.StageSearchStart,
		Query:      p.Query,
		Location:   p.Location,
		Remote:     p.Remote,
		MaxResults: p.MaxResults,
		Scraping:   p.IncludeScraping,
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search %s: panic: %v", id, r)
			res = Result{}
		}
		elapsed := a.clock.Now().Sub(start)
		if err != nil {
			logger.Error("search failed", zap.Error(err), zap.String("query", p.Query), zap.String("location", p.Location))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.ObserveSearch("error", elapsed)
			a.emit(progress.Event{SearchID: searchID, Stage: progress.StageSearchError, Dur: nonNegative(elapsed), Note: err.Error()})
			return
		}
		metrics.ObserveSearch("success", elapsed)
		a.results.Record(ctx, int64(len(res.Jobs)))
		span.SetAttributes(attribute.Int("search.count", len(res.Jobs)))
		a.emit(progress.Event{SearchID: searchID, Stage: progress.StageSearchDone, Count: len(res.Jobs), Dur: nonNegative(elapsed)})
		logger.Info("search finished", zap.Int("count", len(res.Jobs)), zap.Duration("elapsed", elapsed))
	}()

	res = a.run(ctx, logger, searchID, p)
	res.SearchID = id
	return res, nil
}

func (a *Aggregator) run(ctx context.Context, logger *zap.Logger, searchID [16]byte, p Params) Result {
	stages := []source.Stage{source.StageAPI, source.StageModern}
	if p.IncludeScraping {
		stages = append(stages, source.StageTraditional)
	}
	sources := make(map[source.Stage][]source.Source, len(stages))
	active := 0
	for _, st := range stages {
		sources[st] = a.sources.Stage(st)
		active += len(sources[st])
	}

	summary := Summary{
		APIs:          len(sources[source.StageAPI]),
		ModernSources: len(sources[source.StageModern]),
	}
	if p.IncludeScraping {
		summary.TraditionalScrapers = len(sources[source.StageTraditional])
	}
	summary.Total = summary.APIs + summary.ModernSources + summary.TraditionalScrapers

	quota := Quota(p.MaxResults, active)
	res := Result{Jobs: []job.Posting{}, Sources: summary, Quota: quota}
	if quota == 0 {
		logger.Info("nothing to search", zap.Int("max_results", p.MaxResults), zap.Int("active_sources", active))
		return res
	}

	r := &searchRun{
		agg:      a,
		logger:   logger,
		searchID: searchID,
		req: source.Request{
			Query:      p.Query,
			Location:   p.Location,
			Remote:     p.Remote,
			MaxResults: quota,
		},
	}
	if a.newSession != nil && needsBrowser(stages, sources) {
		session := a.newSession()
		r.session = session
		r.req.Browser = session
		defer r.shutdown()
	}

	var all []job.Posting
	for _, st := range stages {
		report, postings := r.stage(ctx, st, sources[st])
		res.Stages = append(res.Stages, report)
		all = append(all, postings...)
	}

	unique := dedup.Dedupe(all)
	metrics.ObserveDedupDropped(len(all) - len(unique))
	if len(unique) > p.MaxResults {
		unique = unique[:p.MaxResults]
	}
	res.Jobs = unique
	logger.Debug("search merged",
		zap.Int("collected", len(all)),
		zap.Int("unique", len(unique)),
		zap.Int("quota", quota),
	)
	return res
}

func (a *Aggregator) emit(evt progress.Event) {
	if evt.TS.IsZero() {
		evt.TS = a.clock.Now().UTC()
	}
	a.emitter.Emit(evt)
}

func needsBrowser(stages []source.Stage, sources map[source.Stage][]source.Source) bool {
	for _, st := range stages {
		for _, s := range sources[st] {
			if s.Descriptor().Transport == source.TransportBrowser {
				return true
			}
		}
	}
	return false
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

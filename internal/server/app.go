// Package server builds the application's dependencies and runs the HTTP service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/aggregator"
	"github.com/JakeFAU/job-aggregator/internal/api"
	"github.com/JakeFAU/job-aggregator/internal/browser"
	"github.com/JakeFAU/job-aggregator/internal/clock/system"
	"github.com/JakeFAU/job-aggregator/internal/config"
	collyfetcher "github.com/JakeFAU/job-aggregator/internal/fetcher/colly"
	"github.com/JakeFAU/job-aggregator/internal/id/uuid"
	"github.com/JakeFAU/job-aggregator/internal/logging"
	"github.com/JakeFAU/job-aggregator/internal/metrics"
	"github.com/JakeFAU/job-aggregator/internal/policy/ratelimit"
	"github.com/JakeFAU/job-aggregator/internal/progress"
	progresssinks "github.com/JakeFAU/job-aggregator/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/job-aggregator/internal/publisher/pubsub"
	"github.com/JakeFAU/job-aggregator/internal/source"
	memorystorage "github.com/JakeFAU/job-aggregator/internal/storage/memory"
	pgstore "github.com/JakeFAU/job-aggregator/internal/storage/postgres"
	"github.com/JakeFAU/job-aggregator/internal/store"
	"github.com/JakeFAU/job-aggregator/internal/telemetry"
)

// searchCompletedEvent tags search summaries published to Pub/Sub.
const searchCompletedEvent = "search.completed"

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	registerer   prometheus.Registerer
	apiServer    *api.Server
	aggregator   *aggregator.Aggregator
	registry     *source.Registry
	progressHub  *progress.Hub
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	searchRepo   store.SearchRepository
	pgStore      *pgstore.SearchStore
	telemetry    *telemetry.Providers
	ownsLogger   bool
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("headless_enabled", cfg.Headless.Enabled),
		zap.Bool("progress_enabled", cfg.Progress.Enabled),
		zap.Bool("database_configured", cfg.DB.DSN != ""),
		zap.Bool("pubsub_configured", cfg.PubSub.TopicName != ""),
	)
	return &App{
		cfg:        cfg,
		logger:     logger,
		registerer: prometheus.DefaultRegisterer,
	}, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Searcher returns the aggregator for one-shot searches outside the HTTP server.
func (a *App) Searcher() api.Searcher {
	return a.aggregator
}

// Handler returns the HTTP handler of the API server.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP until ctx is canceled or SIGINT/SIGTERM arrives, then closes the app.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started", zap.Strings("sources", a.registry.Names()))
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close flushes progress sinks and releases clients. It is safe to call on a
// partially built App.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
	if a.ownsLogger {
		// Syncing stderr-backed loggers reports EINVAL on some platforms.
		_ = a.logger.Sync()
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	app.ownsLogger = true
	if err := app.build(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	metrics.Init()
	providers, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: a.cfg.Tracing.ServiceName,
		Version:     a.cfg.Tracing.Version,
		ProjectID:   a.cfg.Tracing.ProjectID,
		Region:      a.cfg.Tracing.Region,
		SampleRatio: a.cfg.Tracing.SampleRatio,
		Registerer:  a.registerer,
	})
	if err != nil {
		return fmt.Errorf("telemetry init failed: %w", err)
	}
	a.telemetry = providers

	a.logger.Info("building application dependencies")
	if err := setupDatabase(ctx, a); err != nil {
		return err
	}
	publisher, err := setupPublisher(ctx, a)
	if err != nil {
		return err
	}
	emitter, err := setupProgress(ctx, a, publisher)
	if err != nil {
		return err
	}

	a.registry = setupSources(a)
	factory := browser.NewFactory(browser.Config{
		Enabled:           a.cfg.Headless.Enabled,
		UserAgent:         a.cfg.Headless.UserAgent,
		NavigationTimeout: a.cfg.NavigationTimeout(),
		MaxTabs:           a.cfg.Headless.MaxTabs,
		ExecPath:          a.cfg.Headless.ExecPath,
	}, a.logger)

	a.aggregator, err = aggregator.New(aggregator.Config{
		Sources:      a.registry,
		NewSession:   func() aggregator.Session { return factory.NewSession() },
		Emitter:      emitter,
		Clock:        system.New(),
		IDs:          uuid.New(),
		Logger:       a.logger.Named("aggregator"),
		StageTimeout: a.cfg.StageTimeout(),
	})
	if err != nil {
		return fmt.Errorf("aggregator init failed: %w", err)
	}

	a.apiServer = api.NewServer(a.aggregator, a.searchRepo, *a.cfg, a.logger)
	return nil
}

func setupDatabase(ctx context.Context, app *App) error {
	if app.cfg.DB.DSN == "" {
		app.logger.Warn("no DSN configured, keeping search history in memory")
		app.searchRepo = memorystorage.NewSearchStore()
		return nil
	}
	pg, err := pgstore.NewSearchStore(ctx, pgstore.Config{
		DSN:             app.cfg.DB.DSN,
		MaxConns:        app.cfg.DB.MaxConns,
		MinConns:        app.cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(app.cfg.DB.MaxConnLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("search store init failed: %w", err)
	}
	app.pgStore = pg
	if app.cfg.DB.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("search store migrate failed: %w", err)
		}
		app.logger.Info("search store schema applied")
	}
	app.searchRepo = pg
	return nil
}

func setupPublisher(ctx context.Context, app *App) (progresssinks.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Info("no Pub/Sub topic configured, search summaries are not published")
		return nil, nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = gcppublisher.New(app.pubsubClient.Publisher(app.cfg.PubSub.TopicName), map[string]string{
		"service": app.cfg.Tracing.ServiceName,
	})
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.publisher, nil
}

func setupProgress(ctx context.Context, app *App, publisher progresssinks.Publisher) (progress.Emitter, error) {
	if !app.cfg.Progress.Enabled {
		app.logger.Info("progress tracking disabled")
		return progress.NopEmitter{}, nil
	}
	sinkList := []progress.Sink{
		progresssinks.NewStoreSink(app.searchRepo, app.logger.Named("progress_store")),
	}
	promSink, err := progresssinks.NewPrometheusSink(app.registerer)
	if err != nil {
		return nil, fmt.Errorf("progress prometheus sink: %w", err)
	}
	sinkList = append(sinkList, promSink)
	if app.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(app.logger.Named("progress_log")))
	}
	if publisher != nil {
		sinkList = append(sinkList,
			progresssinks.NewPubSubSink(publisher, searchCompletedEvent, app.logger.Named("progress_pubsub")),
		)
	}

	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(app.cfg.Progress.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(app.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return app.progressHub, nil
}

func setupSources(app *App) *source.Registry {
	fetcherCfg := collyfetcher.Config{
		UserAgent:      app.cfg.HTTP.UserAgent,
		Timeout:        app.cfg.HTTPTimeout(),
		MaxRetries:     app.cfg.HTTP.MaxRetries,
		BackoffInitial: time.Duration(app.cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(app.cfg.HTTP.BackoffMaxMs) * time.Millisecond,
	}
	if app.cfg.RateLimit.Enabled {
		fetcherCfg.Limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   app.cfg.RateLimit.DefaultRPS,
			DefaultBurst: app.cfg.RateLimit.DefaultBurst,
			HostRPS:      app.cfg.RateLimit.HostRPS,
		})
		app.logger.Info("rate limiter enabled",
			zap.Float64("default_rps", app.cfg.RateLimit.DefaultRPS),
			zap.Int("default_burst", app.cfg.RateLimit.DefaultBurst),
		)
	}

	srcCfg := app.cfg.Sources
	registry := source.NewRegistry(source.Config{
		Adzuna: source.AdzunaConfig{
			AppID:   srcCfg.Adzuna.AppID,
			AppKey:  srcCfg.Adzuna.AppKey,
			Country: srcCfg.Adzuna.Country,
		},
		RapidAPIKey:         srcCfg.RapidAPIKey,
		SerpAPIKey:          srcCfg.SerpAPIKey,
		LeverCompanies:      srcCfg.LeverCompanies,
		GreenhouseCompanies: srcCfg.GreenhouseCompanies,
		Enabled:             srcCfg.Enabled,
	}, source.Options{
		Client:     collyfetcher.New(fetcherCfg),
		City:       app.cfg.Search.TargetCity,
		Timeout:    app.cfg.HTTPTimeout(),
		MarkerWait: app.cfg.MarkerWait(),
		UserAgent:  app.cfg.HTTP.UserAgent,
		Logger:     app.logger.Named("source"),
	}, system.New())
	app.logger.Info("sources registered", zap.Strings("sources", registry.Names()))
	return registry
}

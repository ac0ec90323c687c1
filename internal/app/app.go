// Package app initializes and holds the long-lived services of one harvest
// process, acting as its dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/orginfo-harvester/internal/api"
	"github.com/JakeFAU/orginfo-harvester/internal/checkpoint"
	"github.com/JakeFAU/orginfo-harvester/internal/clock/system"
	"github.com/JakeFAU/orginfo-harvester/internal/collector"
	"github.com/JakeFAU/orginfo-harvester/internal/config"
	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
	"github.com/JakeFAU/orginfo-harvester/internal/export"
	"github.com/JakeFAU/orginfo-harvester/internal/extract/orginfo"
	collyfetcher "github.com/JakeFAU/orginfo-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/orginfo-harvester/internal/hash/sha256"
	uuidgen "github.com/JakeFAU/orginfo-harvester/internal/id/uuid"
	"github.com/JakeFAU/orginfo-harvester/internal/metrics"
	"github.com/JakeFAU/orginfo-harvester/internal/pipeline"
	"github.com/JakeFAU/orginfo-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/orginfo-harvester/internal/progress"
	"github.com/JakeFAU/orginfo-harvester/internal/progress/sinks"
	pubsubpublisher "github.com/JakeFAU/orginfo-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/orginfo-harvester/internal/storage"
	"github.com/JakeFAU/orginfo-harvester/internal/storage/gcs"
	"github.com/JakeFAU/orginfo-harvester/internal/storage/local"
	"github.com/JakeFAU/orginfo-harvester/internal/storage/memory"
	"github.com/JakeFAU/orginfo-harvester/internal/storage/postgres"
	"github.com/JakeFAU/orginfo-harvester/internal/telemetry"
)

// Option customizes App construction.
type Option func(*options)

type options struct {
	preview    io.Writer
	registerer prometheus.Registerer
	publisher  crawler.Publisher
	blob       storage.Blob
}

// WithPreview sends the export preview to w.
func WithPreview(w io.Writer) Option {
	return func(o *options) { o.preview = w }
}

// WithRegisterer registers progress collectors on reg instead of the default
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithPublisher overrides the Pub/Sub publisher.
func WithPublisher(p crawler.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithBlob overrides the configured checkpoint backend.
func WithBlob(b storage.Blob) Option {
	return func(o *options) { o.blob = b }
}

// App holds the services shared by a harvest run.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	runID   uuid.UUID
	run     crawler.RunConfig
	hub     *progress.Hub
	status  *api.StatusSink
	deps    pipeline.Deps
	closers []func(context.Context) error
}

// New wires every service named in cfg. It fails fast when a backend cannot
// be initialized; everything opened so far is closed again.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (a *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	run, err := cfg.RunConfig()
	if err != nil {
		return nil, err
	}
	runID, err := uuidgen.New().NewRunID()
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("run_id", runID.String()))
	logger.Info("initializing harvester services")

	a = &App{cfg: cfg, logger: logger, runID: runID, run: run}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	promSink, err := sinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	a.status = api.NewStatusSink()
	a.hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")), promSink, a.status)
	a.closers = append(a.closers, a.hub.Close)

	blob := o.blob
	if blob == nil {
		if blob, err = a.openBlob(ctx); err != nil {
			return nil, err
		}
	}
	store, err := checkpoint.NewStore(blob, checkpoint.Config{
		LinksName:   cfg.Checkpoint.LinksName,
		RecordsName: cfg.Checkpoint.RecordsName,
		Hasher:      sha256.New(),
	}, logger.Named("checkpoint"))
	if err != nil {
		return nil, fmt.Errorf("init checkpoint store: %w", err)
	}

	clock := system.New()
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   run.RequestTimeout,
		Policy: ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
			Burst:             cfg.HTTP.Burst,
		}),
	})
	coll, err := collector.New(collector.Config{
		BaseURL:    cfg.Harvest.BaseURL,
		SearchPath: cfg.Harvest.SearchPath,
		Query:      run.Query,
		RunID:      progress.UUIDToBytes(runID),
	}, fetcher, orginfo.New(), a.hub, clock, logger.Named("collector"))
	if err != nil {
		return nil, fmt.Errorf("init collector: %w", err)
	}

	exportCfg := export.Config{
		Path:        cfg.Export.Path,
		Sheet:       cfg.Export.Sheet,
		PreviewRows: cfg.Export.PreviewRows,
	}
	if cfg.Export.Preview {
		exportCfg.Preview = o.preview
	}

	pub := o.publisher
	if pub == nil && cfg.PubSub.TopicName != "" {
		if pub, err = a.openPublisher(ctx); err != nil {
			return nil, err
		}
	}

	tracer, err := a.openTracer(ctx)
	if err != nil {
		return nil, err
	}

	a.deps = pipeline.Deps{
		Store:     store,
		Links:     coll,
		Details:   coll,
		Exporter:  export.New(exportCfg, logger.Named("export")),
		Emitter:   a.hub,
		Publisher: pub,
		Clock:     clock,
		Tracer:    tracer,
	}

	if cfg.Metrics.ListenAddr != "" {
		a.startMetrics()
	}

	logger.Info("harvester services initialized",
		zap.String("checkpoint_backend", cfg.Checkpoint.Backend),
		zap.Int("workers", run.Workers),
		zap.Int("batch_size", run.BatchSize),
	)
	return a, nil
}

func (a *App) openBlob(ctx context.Context) (storage.Blob, error) {
	cp := a.cfg.Checkpoint
	switch cp.Backend {
	case config.BackendMemory:
		a.logger.Warn("using in-memory checkpoints; progress will not survive a restart")
		return memory.NewBlobStore(), nil
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create GCS client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		store, err := gcs.New(client, gcs.Config{Bucket: cp.GCSBucket, Prefix: cp.GCSPrefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs checkpoints: %w", err)
		}
		return store, nil
	case config.BackendPostgres:
		store, err := postgres.New(ctx, postgres.Config{
			DSN:             a.cfg.DB.DSN,
			Table:           a.cfg.DB.Table,
			MaxConns:        a.cfg.DB.MaxConns,
			MinConns:        a.cfg.DB.MinConns,
			MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres checkpoints: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			store.Close()
			return nil
		})
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := local.New(local.Config{BaseDir: filepath.Clean(cp.Dir)})
		if err != nil {
			return nil, fmt.Errorf("init local checkpoints: %w", err)
		}
		return store, nil
	}
}

func (a *App) openPublisher(ctx context.Context) (crawler.Publisher, error) {
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client)
	a.closers = append(a.closers, func(context.Context) error {
		pub.Close()
		return client.Close()
	})
	return pub, nil
}

// openTracer returns nil when tracing is off; the pipeline then falls back to
// the global no-op provider.
func (a *App) openTracer(ctx context.Context) (trace.Tracer, error) {
	if !a.cfg.Tracing.Enabled {
		return nil, nil
	}
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: a.cfg.Tracing.ServiceName,
		Exporters:   []sdktrace.SpanExporter{telemetry.NewLogExporter(a.logger.Named("trace"))},
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, tp.Shutdown)
	return tp.Tracer(pipeline.TracerName), nil
}

func (a *App) startMetrics() {
	status := api.NewHandler(a.status, a.logger.Named("api"))
	srv := metrics.NewServer(a.cfg.Metrics.ListenAddr, status.Routes)
	a.closers = append(a.closers, srv.Shutdown)
	go func() {
		a.logger.Info("metrics server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Status returns the operator view of the run, as served on
// /v1/harvest/status.
func (a *App) Status() api.Snapshot {
	return a.status.Snapshot()
}

// RunID identifies this process's run in logs, events and the completion
// notice.
func (a *App) RunID() uuid.UUID {
	return a.runID
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Harvest builds a Controller over the wired services and runs it.
func (a *App) Harvest(ctx context.Context) (pipeline.Result, error) {
	ctrl, err := pipeline.New(a.run, a.deps, pipeline.Options{
		RunID:  a.runID,
		Topic:  a.cfg.PubSub.TopicName,
		Output: a.cfg.Export.Path,
	}, a.logger.Named("pipeline"))
	if err != nil {
		return pipeline.Result{}, err
	}
	return ctrl.Run(ctx)
}

// Close shuts services down in reverse order of creation. Errors are logged.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}

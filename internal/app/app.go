// Package app wires configuration into a runnable crawler: storage, the
// browser driver, the progress hub, the ops server and the orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/api"
	"github.com/JakeFAU/lore-crawler/internal/browser"
	"github.com/JakeFAU/lore-crawler/internal/browser/headless"
	"github.com/JakeFAU/lore-crawler/internal/browser/rodpage"
	"github.com/JakeFAU/lore-crawler/internal/browser/static"
	"github.com/JakeFAU/lore-crawler/internal/clock/system"
	"github.com/JakeFAU/lore-crawler/internal/config"
	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/extract"
	"github.com/JakeFAU/lore-crawler/internal/id/uuid"
	"github.com/JakeFAU/lore-crawler/internal/logging"
	"github.com/JakeFAU/lore-crawler/internal/metrics"
	"github.com/JakeFAU/lore-crawler/internal/orchestrator"
	"github.com/JakeFAU/lore-crawler/internal/output"
	"github.com/JakeFAU/lore-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/lore-crawler/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/lore-crawler/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/lore-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/lore-crawler/internal/storage/local"
	pgstore "github.com/JakeFAU/lore-crawler/internal/storage/postgres"
	"github.com/JakeFAU/lore-crawler/internal/telemetry"
)

// Version is stamped into traces; overridden at link time.
var Version = "dev"

// App contains the application's dependencies for a single crawl run.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	runID          string
	orch           *orchestrator.Orchestrator
	apiServer      *api.Server
	progressHub    *progress.Hub
	snapshot       *progresssinks.SnapshotSink
	pubsubClient   *pubsub.Client
	publisher      *gcppublisher.Publisher
	storage        *storage.Client
	records        *pgstore.RecordStore
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies. The returned App must be
// closed even when Run fails.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	// Close whatever was opened so far if a later step fails.
	ok := false
	defer func() {
		if !ok {
			_ = app.Close(context.WithoutCancel(ctx))
		}
	}()

	if cfg.Telemetry.Enabled {
		exporter, err := telemetry.NewExporter(telemetry.ExporterOptions{
			Kind:      cfg.Telemetry.Exporter,
			ProjectID: cfg.Telemetry.ProjectID,
		})
		if err != nil {
			return nil, fmt.Errorf("trace exporter: %w", err)
		}
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Version:     Version,
			Exporter:    exporter,
		})
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
		app.tracerShutdown = tp.Shutdown
	}

	app.runID, err = uuid.NewUUIDGenerator().NewID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	app.logger = logger.With(zap.String("run_id", app.runID))
	app.logger.Info("Building application dependencies",
		zap.String("site", cfg.Site.BaseURL),
		zap.String("driver", cfg.Browser.Driver),
		zap.String("output_backend", cfg.Output.Backend),
	)

	blobStore, err := setupStorage(ctx, app)
	if err != nil {
		return nil, err
	}
	resultStore, err := setupResults(ctx, app, blobStore)
	if err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}
	emitter, err := setupProgress(app, publisher, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	opener, err := setupBrowser(app)
	if err != nil {
		return nil, err
	}
	selectors, err := extract.LoadSelectors(cfg.Selectors.File)
	if err != nil {
		return nil, fmt.Errorf("selectors init failed: %w", err)
	}

	app.orch, err = orchestrator.New(orchestrator.Config{
		RunID:  app.runID,
		Limit:  cfg.Crawl.Limit,
		Pacing: cfg.EntityPacing(),
	}, orchestrator.Deps{
		Open:  opener,
		Store: resultStore,
		Extract: extract.Options{
			SiteBase:   cfg.Site.BaseURL,
			CatalogURL: cfg.Site.CatalogURL,
			Selectors:  selectors,
			Timing:     cfg.Timing(),
			Logger:     app.logger.Named("extract"),
		},
		Events: emitter,
		Clock:  system.New(),
		Logger: app.logger.Named("orchestrator"),
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}

	if cfg.Server.Enabled {
		app.apiServer = api.NewServer(app.snapshot, api.Options{
			Logger: app.logger.Named("api"),
			Ready:  app.ready,
		})
	}

	ok = true
	return app, nil
}

// RunID returns the id shared by the orchestrator and the Postgres mirror.
func (a *App) RunID() string {
	return a.runID
}

// Run serves the ops API when enabled and executes one crawl. Cancelling
// ctx interrupts the crawl; recorded entities are still saved.
func (a *App) Run(ctx context.Context) (orchestrator.Summary, error) {
	var srv *http.Server
	if a.apiServer != nil {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           a.apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("HTTP server started", zap.Int("port", a.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("HTTP server error", zap.Error(err))
			}
		}()
	}

	summary, err := a.orch.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			a.logger.Error("Server shutdown error", zap.Error(serr))
		}
	}
	return summary, err
}

// Progress returns the live snapshot of the current run.
func (a *App) Progress() progresssinks.Snapshot {
	if a.snapshot == nil {
		return progresssinks.NewSnapshotSink().Snapshot()
	}
	return a.snapshot.Snapshot()
}

// Close flushes progress sinks and releases clients. It is safe to call on
// a partially built App.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("Shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("Progress hub close failed", zap.Error(err))
		}
		if dropped := a.progressHub.Dropped(); dropped > 0 {
			a.logger.Warn("Progress events dropped", zap.Int64("count", dropped))
		}
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("Pub/Sub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("GCS client close failed", zap.Error(err))
		}
	}
	if a.records != nil {
		a.records.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	logging.Sync(a.logger)
}

func (a *App) ready(ctx context.Context) error {
	if a.records == nil {
		return nil
	}
	return a.records.Ping(ctx)
}

func setupStorage(ctx context.Context, app *App) (crawler.BlobStore, error) {
	out := app.cfg.Output
	switch out.Backend {
	case config.BackendGCS:
		app.logger.Info("Using GCS output backend", zap.String("bucket", out.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{Bucket: out.Bucket, Prefix: out.Prefix})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobStore, nil
	case config.BackendLocal:
		app.logger.Info("Using local output backend", zap.String("path", out.Dir))
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: out.Dir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobStore, nil
	default:
		return nil, fmt.Errorf("unknown output backend %q", out.Backend)
	}
}

// setupResults layers the optional Postgres mirror behind the file writer so
// the checkpoint and final files are always written first.
func setupResults(ctx context.Context, app *App, blobStore crawler.BlobStore) (crawler.ResultStore, error) {
	out := app.cfg.Output
	writer, err := output.NewWriter(blobStore, output.Names{
		Checkpoint: out.CheckpointName,
		CSV:        out.CSVName,
		JSON:       out.JSONName,
	}, app.logger.Named("output"))
	if err != nil {
		return nil, fmt.Errorf("output writer init failed: %w", err)
	}
	if !app.cfg.Postgres.Enabled {
		return writer, nil
	}

	pg := app.cfg.Postgres
	app.records, err = pgstore.NewRecordStore(ctx, pgstore.Config{
		DSN:             pg.DSN,
		Table:           pg.Table,
		MaxConns:        pg.MaxConns,
		MinConns:        pg.MinConns,
		MaxConnLifetime: app.cfg.MaxConnLifetime(),
	}, app.runID, system.New())
	if err != nil {
		return nil, fmt.Errorf("record store init failed: %w", err)
	}
	app.logger.Info("Postgres entity mirror initialized", zap.String("table", pg.Table))
	return output.MultiStore{writer, app.records}, nil
}

func setupPublisher(ctx context.Context, app *App) (crawler.Publisher, error) {
	ps := app.cfg.PubSub
	if !ps.Enabled {
		app.logger.Debug("Pub/Sub notifications disabled")
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, ps.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.publisher, err = gcppublisher.New(client)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", ps.ProjectID),
		zap.String("topic", ps.TopicName),
	)
	return app.publisher, nil
}

func setupProgress(app *App, publisher crawler.Publisher, reg prometheus.Registerer) (progress.Emitter, error) {
	app.snapshot = progresssinks.NewSnapshotSink()
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, fmt.Errorf("progress metrics init failed: %w", err)
	}
	sinkList := []progress.Sink{
		progresssinks.NewLogSink(app.logger.Named("progress_log")),
		promSink,
		app.snapshot,
	}
	if publisher != nil {
		publishSink, err := progresssinks.NewPublishSink(publisher, app.cfg.PubSub.TopicName)
		if err != nil {
			return nil, fmt.Errorf("progress publish sink init failed: %w", err)
		}
		sinkList = append(sinkList, publishSink)
	}
	app.progressHub = progress.NewHub(progress.Config{
		Logger: app.logger.Named("progress_hub"),
	}, sinkList...)
	app.logger.Debug("Progress hub initialized", zap.Int("sinks", len(sinkList)))
	return app.progressHub, nil
}

func setupBrowser(app *App) (browser.Opener, error) {
	bc := app.cfg.Browser
	var snapshots *browser.SnapshotWriter
	if bc.SnapshotDir != "" {
		var err error
		snapshots, err = browser.NewSnapshotWriter(bc.SnapshotDir, app.logger.Named("snapshots"))
		if err != nil {
			return nil, fmt.Errorf("snapshot writer init failed: %w", err)
		}
	}

	logger := app.logger.Named("browser")
	switch bc.Driver {
	case config.DriverChromedp:
		logger.Info("Using chromedp driver", zap.Bool("headless", bc.Headless))
		return headless.Opener(headless.Config{
			Headless:          bc.Headless,
			ExecPath:          bc.ExecPath,
			UserAgent:         bc.UserAgent,
			WindowWidth:       bc.WindowWidth,
			WindowHeight:      bc.WindowHeight,
			NavigationTimeout: app.cfg.NavigationTimeout(),
			ActionTimeout:     app.cfg.ActionTimeout(),
			NavigationQPS:     bc.NavQPS,
			Snapshots:         snapshots,
		}, logger), nil
	case config.DriverRod:
		logger.Info("Using rod driver", zap.Bool("headless", bc.Headless), zap.Bool("stealth", bc.Stealth))
		return rodpage.Opener(rodpage.Config{
			Headless:          bc.Headless,
			Bin:               bc.ExecPath,
			UserAgent:         bc.UserAgent,
			Stealth:           bc.Stealth,
			NavigationTimeout: app.cfg.NavigationTimeout(),
			NavigationQPS:     bc.NavQPS,
			Snapshots:         snapshots,
		}, logger), nil
	case config.DriverReplay:
		logger.Info("Replaying saved snapshots", zap.String("dir", bc.ReplayDir))
		source := static.DirSource{Root: bc.ReplayDir}
		return func(context.Context) (browser.Page, error) {
			return static.New(source), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", bc.Driver)
	}
}

// Package app initializes and holds the long-lived services of one scdx
// invocation, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/scdx/internal/api"
	"github.com/JakeFAU/scdx/internal/cdx"
	"github.com/JakeFAU/scdx/internal/clock/system"
	"github.com/JakeFAU/scdx/internal/config"
	"github.com/JakeFAU/scdx/internal/hash/sha256"
	"github.com/JakeFAU/scdx/internal/id/uuid"
	"github.com/JakeFAU/scdx/internal/metrics"
	"github.com/JakeFAU/scdx/internal/output"
	"github.com/JakeFAU/scdx/internal/progress"
	"github.com/JakeFAU/scdx/internal/progress/sinks"
	"github.com/JakeFAU/scdx/internal/publisher"
	pubsubpub "github.com/JakeFAU/scdx/internal/publisher/pubsub"
	"github.com/JakeFAU/scdx/internal/storage"
	"github.com/JakeFAU/scdx/internal/storage/gcs"
	"github.com/JakeFAU/scdx/internal/storage/postgres"
	"github.com/JakeFAU/scdx/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Clock is the time source and sleeper used by the fetch loop.
type Clock interface {
	cdx.Clock
	cdx.Sleeper
}

// Options overrides collaborators that New would otherwise build from the
// configuration. Zero values mean "build from config".
type Options struct {
	Logger    *zap.Logger
	Notices   io.Writer
	Results   io.Writer
	Clock     Clock
	Runs      store.RunRepository
	Blobs     storage.BlobStore
	Publisher publisher.Publisher
}

// Completion is the payload published when a run finishes successfully.
type Completion struct {
	cdx.Summary
	OutputURI    string    `json:"output_uri,omitempty"`
	OutputSHA256 string    `json:"output_sha256"`
	FinishedAt   time.Time `json:"finished_at"`
}

// App holds the shared services for a single invocation.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  Clock
	ids    *uuid.Generator
	client *cdx.Client

	notices io.Writer
	results io.Writer

	registry   *prometheus.Registry
	collectors *metrics.Collectors
	status     *sinks.StatusSink
	server     *api.Server

	runs      store.RunRepository
	blobs     storage.BlobStore
	publisher publisher.Publisher

	closers []func() error
}

// New wires the services enabled by cfg. Optional services (run ledger,
// upload, notification, status server) are only built when configured.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	a := &App{
		cfg:       cfg,
		logger:    opts.Logger,
		clock:     opts.Clock,
		ids:       uuid.New(),
		notices:   opts.Notices,
		results:   opts.Results,
		runs:      opts.Runs,
		blobs:     opts.Blobs,
		publisher: opts.Publisher,
		status:    sinks.NewStatusSink(),
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.clock == nil {
		a.clock = system.New()
	}
	if a.notices == nil {
		a.notices = os.Stderr
	}
	if a.results == nil {
		a.results = os.Stdout
	}
	a.client = cdx.NewClient(cdx.ClientConfig{
		CatalogURL: cfg.Index.CollinfoURL,
		UserAgent:  cfg.Index.UserAgent,
		Timeout:    cfg.Timeout(),
	}, a.logger.Named("cdx"))

	a.registry = metrics.NewRegistry()
	collectors, err := metrics.NewCollectors(a.registry)
	if err != nil {
		return nil, err
	}
	a.collectors = collectors

	if err := a.initServices(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) initServices(ctx context.Context) error {
	if a.runs == nil && a.cfg.DB.DSN != "" {
		a.logger.Info("connecting run ledger")
		runStore, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{
			DSN:      a.cfg.DB.DSN,
			MaxConns: int32(a.cfg.DB.MaxConns), //nolint:gosec // validated >= 0
		})
		if err != nil {
			return fmt.Errorf("init run ledger: %w", err)
		}
		a.closers = append(a.closers, func() error { runStore.Close(); return nil })
		if err := runStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("init run ledger: %w", err)
		}
		a.runs = runStore
	}

	if a.blobs == nil && a.cfg.Storage.GCSBucket != "" {
		a.logger.Info("using GCS output upload", zap.String("bucket", a.cfg.Storage.GCSBucket))
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		blobStore, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("init storage: %w", err)
		}
		a.closers = append(a.closers, blobStore.Close)
		a.blobs = blobStore
	}

	if a.publisher == nil && a.cfg.PubSub.TopicName != "" {
		a.logger.Info("using Pub/Sub completion notifications", zap.String("topic", a.cfg.PubSub.TopicName))
		client, err := pubsubpub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub: %w", err)
		}
		pub := pubsubpub.New(client)
		a.closers = append(a.closers, pub.Close)
		a.publisher = pub
	}

	if a.cfg.Metrics.ListenAddr != "" {
		a.server = api.NewServer(a.status, a.registry, a.collectors, a.logger.Named("api"))
		if err := a.server.Start(a.cfg.Metrics.ListenAddr); err != nil {
			a.server = nil
			return fmt.Errorf("start status server: %w", err)
		}
	}
	return nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Status returns the live progress snapshot source.
func (a *App) Status() *sinks.StatusSink {
	return a.status
}

// StatusAddr reports the bound status server address, or "" when disabled.
func (a *App) StatusAddr() string {
	if a.server == nil {
		return ""
	}
	return a.server.Addr()
}

// ListCrawls fetches the index catalog.
func (a *App) ListCrawls(ctx context.Context) ([]cdx.Crawl, error) {
	return a.client.Catalog(ctx)
}

// Run executes one fetch run described by the fetch and output config:
// catalog, selection, the record fetch loop, and the optional upload and
// notification once the output file is closed.
func (a *App) Run(ctx context.Context) (cdx.Summary, error) {
	domain, err := cdx.NormalizeDomain(a.cfg.Fetch.Domain)
	if err != nil {
		return cdx.Summary{}, err
	}
	selection, err := cdx.NewSelection(a.cfg.Fetch.Crawls, a.cfg.Fetch.Latest)
	if err != nil {
		return cdx.Summary{}, err
	}
	runID, err := a.ids.NewRawID()
	if err != nil {
		return cdx.Summary{}, err
	}
	outputPath := a.cfg.Output.Path
	if outputPath == "" {
		outputPath = cdx.DefaultOutputName(a.clock.Now().Local())
	}

	catalog, err := a.client.Catalog(ctx)
	if err != nil {
		return cdx.Summary{}, err
	}
	crawls := cdx.Select(catalog, selection)
	a.logger.Debug("crawls selected",
		zap.Int("catalog", len(catalog)),
		zap.Int("selected", len(crawls)),
		zap.Stringer("mode", selection.Mode()),
	)

	writer, err := output.Create(outputPath)
	if err != nil {
		return cdx.Summary{}, err
	}

	dispatcher := progress.NewDispatcher(progress.Config{Logger: a.logger.Named("progress")},
		sinks.NewConsoleSink(a.notices, a.results),
		sinks.NewLogSink(a.logger.Named("progress")),
		sinks.NewPrometheusSink(a.collectors),
		a.storeSink(),
		a.status,
	)
	runner := cdx.NewRunner(a.client, writer, a.clock, a.clock, dispatcher, a.logger.Named("runner"))

	summary, runErr := runner.Run(ctx, cdx.RunConfig{
		RunID:      runID,
		Domain:     domain,
		Sleep:      a.cfg.Sleep(),
		OutputPath: outputPath,
		Selection:  selection,
		MaxRetries: a.cfg.Fetch.MaxRetries,
	}, crawls)

	if err := writer.Close(); err != nil && runErr == nil {
		runErr = err
	}
	a.logger.Info("output closed",
		zap.String("path", writer.Path()),
		zap.Int64("records", writer.Records()),
	)
	if runErr == nil {
		runErr = a.publish(ctx, summary)
	}
	if err := dispatcher.Close(ctx); err != nil {
		a.logger.Warn("closing progress sinks", zap.Error(err))
	}
	a.writeTextfile()
	return summary, runErr
}

func (a *App) storeSink() progress.Sink {
	if a.runs == nil {
		return nil
	}
	return sinks.NewStoreSink(a.runs, a.logger.Named("ledger"))
}

// publish uploads the finished output and announces the run.
func (a *App) publish(ctx context.Context, summary cdx.Summary) error {
	if a.blobs == nil && a.publisher == nil {
		return nil
	}
	digest, err := sha256.File(summary.OutputPath)
	if err != nil {
		return fmt.Errorf("digest output: %w", err)
	}
	completion := Completion{Summary: summary, OutputSHA256: digest, FinishedAt: a.clock.Now()}
	if a.blobs != nil {
		objectPath := storage.ObjectPath(a.cfg.Storage.Prefix, summary.RunID.String(), summary.OutputPath)
		uri, err := storage.UploadFile(ctx, a.blobs, objectPath, summary.OutputPath)
		if err != nil {
			return err
		}
		completion.OutputURI = uri
		a.logger.Info("output uploaded", zap.String("uri", uri), zap.String("sha256", digest))
	}
	if a.publisher != nil {
		id, err := a.publisher.Publish(ctx, a.cfg.PubSub.TopicName, completion)
		if err != nil {
			return fmt.Errorf("publish completion: %w", err)
		}
		a.logger.Info("completion published", zap.String("message_id", id))
	}
	return nil
}

func (a *App) writeTextfile() {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
		a.logger.Warn("metrics textfile export failed", zap.Error(err))
	}
}

// Close shuts down the status server and releases every client.
func (a *App) Close() {
	var errs []error
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, a.server.Shutdown(ctx))
		cancel()
		a.server = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error shutting down services", zap.Error(err))
	}
	_ = a.logger.Sync()
}

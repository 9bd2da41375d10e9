package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"suppliersync/config"
	"suppliersync/internal/supplier/business"
	"suppliersync/internal/supplier/models"
	"suppliersync/internal/supplier/pkg"
	"suppliersync/internal/supplier/pkg/clients"
	"suppliersync/internal/supplier/storage"
	"suppliersync/metrics"
	"suppliersync/pkg/business/service"
	"suppliersync/pkg/business/service/csv_export"
	"suppliersync/pkg/dbconnect"
	"suppliersync/pkg/dbconnect/migration"
	"suppliersync/pkg/logger"
)

var (
	ErrNoIdentifiers  = errors.New("identifier file has no identifiers")
	ErrNothingFetched = errors.New("no records were fetched")
)

type RunOptions struct {
	IdentifierFile string
	// Source overrides sync.source when set.
	Source         string
	DownloadImages bool
}

type Result struct {
	Run        *models.SyncRun
	ExportPath string
	// SampleRow is the first export row, in business.ExportColumns order.
	SampleRow []string
}

// SyncApp собирает движок синхронизации из конфигурации: база, миграции,
// клиент поставщика, экспорт и журнал запусков.
type SyncApp struct {
	cfg       *config.AppConfig
	connector dbconnect.Database
	logWriter io.Writer
	progress  io.Writer
	log       logger.Logger
	now       func() time.Time

	mu sync.Mutex
	db *sql.DB
}

// NewSyncApp does not touch the database; the first Run connects and
// migrates. progress receives the status line, nil disables it.
func NewSyncApp(cfg *config.AppConfig, logWriter, progress io.Writer) (*SyncApp, error) {
	connector, err := dbconnect.NewConnector(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return &SyncApp{
		cfg:       cfg,
		connector: connector,
		logWriter: logWriter,
		progress:  progress,
		log:       logger.NewLogger(logWriter, "[ SyncApp ]"),
		now:       time.Now,
	}, nil
}

func (a *SyncApp) open(ctx context.Context) (*sql.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return a.db, nil
	}

	db, err := a.connector.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", a.connector.Dialect(), err)
	}
	if err := migration.Apply(ctx, db, a.connector.Dialect(), a.log, storage.Migrations()...); err != nil {
		db.Close()
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *SyncApp) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// Run executes one sync over the identifier file. Missing or empty input
// fails before any request is made; a run that fetched nothing returns the
// Result together with ErrNothingFetched.
func (a *SyncApp) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	ids, err := pkg.LoadIdentifiers(opts.IdentifierFile)
	if err != nil {
		return nil, fmt.Errorf("identifier file: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s: %w", opts.IdentifierFile, ErrNoIdentifiers)
	}

	source := opts.Source
	if source == "" {
		source = a.cfg.Sync.Source
	}
	sc := a.cfg.Sync
	scheduler := business.NewScheduler(sc.Concurrency, sc.PerRequestDelay, sc.InterBatchDelay, a.logWriter)
	fetcher, mode, err := a.fetcher(source, scheduler.Pacer())
	if err != nil {
		return nil, err
	}

	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}

	text := service.NewTextService()
	svc, err := a.syncService(fetcher, scheduler, storage.NewProductRepository(db), source, text)
	if err != nil {
		return nil, err
	}
	if opts.DownloadImages || a.cfg.Sync.DownloadImages {
		svc.WithImages(a.imageClient(), business.NewRetrier(business.RetryPolicy{
			MaxRetries: a.cfg.Images.MaxRetries,
			BaseDelay:  a.cfg.Images.BaseDelay,
			Retryable:  pkg.IsTransient,
		}, a.logWriter))
	}

	exporter := business.NewExporter(text)
	run, runErr := svc.Run(ctx, uuid.NewString(), ids, mode, exporter)

	// the journal and the export are written even for a cancelled run
	saveCtx := context.WithoutCancel(ctx)
	if err := storage.NewSyncLogRepository(db).Save(saveCtx, run); err != nil {
		a.log.Log("sync log: %v", err)
	}

	result := &Result{Run: run}
	if rows := exporter.Rows(); len(rows) > 0 {
		result.SampleRow = rows[0]
		path := filepath.Join(a.cfg.Export.Dir, fmt.Sprintf("%s_%s.csv", source, a.now().Format("20060102_150405")))
		writer := csv_export.NewWriter(business.ExportColumns).SetEncoding(a.cfg.Export.Encoding)
		if err := writer.WriteFile(path, rows); err != nil {
			return result, fmt.Errorf("export: %w", err)
		}
		result.ExportPath = path
	}

	if runErr != nil {
		return result, runErr
	}
	if run.Fetched == 0 {
		return result, fmt.Errorf("%w from %d identifiers (%d failed)", ErrNothingFetched, len(ids), run.Failed)
	}
	return result, nil
}

// RunEvery repeats Run every interval until ctx is done. Errors of single
// runs are logged and do not stop the loop.
func (a *SyncApp) RunEvery(ctx context.Context, opts RunOptions, every time.Duration, onResult func(*Result, error)) error {
	if every <= 0 {
		return errors.New("interval must be positive")
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		result, err := a.Run(ctx, opts)
		if onResult != nil {
			onResult(result, err)
		}
		if err != nil {
			a.log.Log("run failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// fetcher maps the source to its client and write mode: the API is the
// source of truth and overwrites, scraped listings only add.
func (a *SyncApp) fetcher(source string, pacer pkg.Pacer) (pkg.Fetcher, models.UpsertMode, error) {
	switch source {
	case config.SourceAPI:
		return clients.NewProductClient(a.cfg.Supplier, a.logWriter), models.ModeInsertOrUpdate, nil
	case config.SourceListing:
		return clients.NewListingClient(a.cfg.Supplier, a.logWriter).WithPacer(pacer), models.ModeInsertOnly, nil
	}
	return nil, 0, fmt.Errorf("unknown source %q", source)
}

func (a *SyncApp) syncService(fetcher pkg.Fetcher, scheduler *business.Scheduler, store business.ProductStore, source string, text service.ITextService) (*business.SyncService, error) {
	defaultBrand := ""
	if source == config.SourceListing {
		defaultBrand = a.cfg.Supplier.Listing.DefaultBrand
	}
	normalizer, err := business.NewNormalizer(a.cfg.Supplier.Origin, defaultBrand, text)
	if err != nil {
		return nil, fmt.Errorf("supplier origin: %w", err)
	}
	pricer, err := business.NewPriceEngine(a.cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}

	sc := a.cfg.Sync
	retrier := business.NewRetrier(business.RetryPolicy{MaxRetries: sc.MaxRetries, BaseDelay: sc.BaseDelay}, a.logWriter).
		WithPacer(scheduler.Pacer())

	svc := business.NewSyncService(fetcher, store, normalizer, pricer, scheduler, retrier, a.logWriter)
	if a.progress != nil {
		svc.WithProgress(business.NewProgressReporter(a.progress, &metrics.SyncMetrics{}))
	}
	return svc, nil
}

func (a *SyncApp) imageClient() *clients.MediaClient {
	store := storage.NewImageStore(a.cfg.Images.Dir)
	return clients.NewImageClient(store, a.cfg.Images.Timeout, a.cfg.Supplier.UserAgent, a.logWriter)
}

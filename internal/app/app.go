package app

import (
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"gorm.io/gorm"

	"github.com/skuforge/skuforge/internal/aggregation"
	"github.com/skuforge/skuforge/internal/common"
	"github.com/skuforge/skuforge/internal/extractors"
	"github.com/skuforge/skuforge/internal/handlers"
	"github.com/skuforge/skuforge/internal/httpclient"
	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/mastersync"
	"github.com/skuforge/skuforge/internal/matching"
	"github.com/skuforge/skuforge/internal/parsers"
	"github.com/skuforge/skuforge/internal/queue"
	"github.com/skuforge/skuforge/internal/queue/workers"
	"github.com/skuforge/skuforge/internal/services/ingest"
	"github.com/skuforge/skuforge/internal/services/scheduler"
	"github.com/skuforge/skuforge/internal/services/status"
	"github.com/skuforge/skuforge/internal/storage"
)

// App holds all initialized services and handlers
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB    *gorm.DB
	Store *badgerhold.Store

	// Repositories
	Suppliers  interfaces.SupplierRepository
	Categories interfaces.CategoryRepository
	Products   interfaces.ProductRepository
	Items      interfaces.SupplierItemRepository
	Reviews    interfaces.ReviewRepository
	Logs       interfaces.ParsingLogRepository

	// Queue subsystem
	QueueManager *queue.Manager
	Processor    *queue.Processor
	Monitor      *queue.Monitor

	// Services
	StatusService      *status.Service
	SchedulerService   *scheduler.Service
	IngestService      *ingest.Service
	MatchingService    *matching.Service
	ReviewService      *matching.ReviewService
	AggregationService *aggregation.Service
	Orchestrator       *mastersync.Orchestrator
	ParserRegistry     *parsers.Registry
	Extractors         *extractors.Pipeline
	Fetcher            *httpclient.Fetcher

	// Handlers
	StatusHandler *handlers.StatusHandler
	ReviewHandler *handlers.ReviewHandler
	SyncHandler   *handlers.SyncHandler
	QueueHandler  *handlers.QueueHandler
	HealthHandler *handlers.HealthHandler
}

// New initializes the application: storage, queue, services, handlers.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := a.initStorage(); err != nil {
		return nil, err
	}
	if err := a.initQueue(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initServices(); err != nil {
		a.Close()
		return nil, err
	}
	a.initHandlers()
	a.registerWorkers()

	logger.Info().
		Str("database", cfg.Database.Driver).
		Str("queue", cfg.Queue.Name).
		Int("workers", cfg.Queue.Concurrency).
		Msg("Application initialized")

	return a, nil
}

func (a *App) initStorage() error {
	db, err := storage.Open(a.Config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.DB = db

	a.Suppliers = storage.NewGormSupplierRepository(db)
	a.Categories = storage.NewGormCategoryRepository(db)
	a.Products = storage.NewGormProductRepository(db)
	a.Items = storage.NewGormSupplierItemRepository(db)
	a.Reviews = storage.NewGormReviewRepository(db)
	a.Logs = storage.NewGormParsingLogRepository(db)

	// Badger backs both the task queue and the sync-status store.
	if err := os.MkdirAll(a.Config.Queue.Path, 0755); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}
	options := badgerhold.DefaultOptions
	options.Dir = a.Config.Queue.Path
	options.ValueDir = a.Config.Queue.Path
	options.Logger = nil // Disable default badger logger to use arbor
	store, err := badgerhold.Open(options)
	if err != nil {
		return fmt.Errorf("failed to open badger database: %w", err)
	}
	a.Store = store

	return nil
}

func (a *App) initQueue() error {
	qcfg := a.Config.Queue

	manager, err := queue.NewManager(
		a.Store.Badger(),
		qcfg.Name,
		common.Duration(qcfg.VisibilityTimeout, 5*time.Minute),
		qcfg.MaxRetries,
		common.Duration(qcfg.BackoffBase, time.Second),
		common.Duration(qcfg.BackoffCap, 5*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue manager: %w", err)
	}
	a.QueueManager = manager

	a.Processor = queue.NewProcessor(
		manager,
		a.Logger,
		qcfg.Concurrency,
		common.Duration(qcfg.JobTimeout, 10*time.Minute),
	)
	a.Monitor = queue.NewMonitor(manager, a.Logger, 30*time.Second)

	return nil
}

func (a *App) initServices() error {
	cfg := a.Config

	a.StatusService = status.NewService(a.Store, a.Logger)
	a.SchedulerService = scheduler.NewService(a.QueueManager, a.Logger)

	a.Fetcher = httpclient.NewFetcher(30*time.Second, 2, 4)

	a.ParserRegistry = parsers.NewRegistry()
	if err := parsers.RegisterBuiltins(a.ParserRegistry, cfg.Uploads.Dir, a.Fetcher); err != nil {
		return fmt.Errorf("failed to register parsers: %w", err)
	}

	a.Extractors = extractors.NewDefaultPipeline()
	a.IngestService = ingest.NewService(a.Items, a.Logs, a.QueueManager, a.Logger)

	// Config stores thresholds as fractions; the matcher scores 0-100.
	thresholds := matching.Thresholds{
		Auto:   cfg.Matching.AutoThreshold * 100,
		Review: cfg.Matching.ReviewThreshold * 100,
	}
	matcher := matching.NewMatcher(thresholds, cfg.Matching.TopCandidates)
	a.MatchingService = matching.NewService(
		a.DB,
		a.Items,
		a.Products,
		a.Categories,
		a.Reviews,
		a.QueueManager,
		matcher,
		matching.Options{
			BatchSize:       cfg.Matching.BatchSize,
			CandidateWindow: cfg.Matching.CandidateWindow,
			ReviewTTL:       time.Duration(cfg.Matching.ReviewTTLDays) * 24 * time.Hour,
			SKUPrefix:       cfg.Matching.SKUPrefix,
		},
		a.Logger,
	)
	a.ReviewService = matching.NewReviewService(a.DB, a.Reviews, a.QueueManager, cfg.Matching.SKUPrefix, a.Logger)
	a.AggregationService = aggregation.NewService(a.DB, a.Items, a.Logger)

	a.Orchestrator = mastersync.NewOrchestrator(
		a.Suppliers,
		a.QueueManager,
		a.StatusService,
		a.Fetcher,
		cfg.MasterSync.SheetURL,
		a.Logger,
	)

	if cfg.MasterSync.Schedule != "" && cfg.MasterSync.SheetURL != "" {
		if err := a.SchedulerService.RegisterMasterSync(cfg.MasterSync.Schedule); err != nil {
			return fmt.Errorf("failed to register master sync schedule: %w", err)
		}
	}
	if cfg.MasterSync.ExpirySchedule != "" {
		if err := a.SchedulerService.RegisterReviewExpiry(cfg.MasterSync.ExpirySchedule); err != nil {
			return fmt.Errorf("failed to register review expiry schedule: %w", err)
		}
	}

	return nil
}

func (a *App) initHandlers() {
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.Monitor, a.Logger)
	a.ReviewHandler = handlers.NewReviewHandler(a.ReviewService, a.Logger)
	a.SyncHandler = handlers.NewSyncHandler(a.StatusService, a.QueueManager, a.Logger)
	a.QueueHandler = handlers.NewQueueHandler(a.QueueManager, a.Logger)
	a.HealthHandler = handlers.NewHealthHandler(a.QueueManager)
}

func (a *App) registerWorkers() {
	a.Processor.RegisterWorker(workers.NewParseWorker(a.ParserRegistry, a.Suppliers, a.IngestService, a.Logs, a.Logger))
	a.Processor.RegisterWorker(workers.NewMatchWorker(a.MatchingService, a.Logger))
	a.Processor.RegisterWorker(workers.NewRecalcWorker(a.AggregationService, a.Logger))
	a.Processor.RegisterWorker(workers.NewEnrichWorker(a.Items, a.Extractors, a.Logger))
	a.Processor.RegisterWorker(workers.NewMasterSyncWorker(a.Orchestrator, a.Logger))
	a.Processor.RegisterWorker(workers.NewReviewExpiryWorker(a.ReviewService, a.Logger))
}

// Start launches the background subsystems: worker pool, queue monitor,
// and the cron scheduler.
func (a *App) Start() error {
	a.Processor.Start()
	a.Monitor.Start()
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Close shuts down background work and releases storage handles.
func (a *App) Close() error {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}
	if a.Monitor != nil {
		a.Monitor.Stop()
	}
	if a.Processor != nil {
		a.Processor.Stop()
	}
	if a.QueueManager != nil {
		if err := a.QueueManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Queue manager close failed")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Badger close failed")
			return err
		}
	}
	return nil
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"example.com/eventhub/config"
	"example.com/eventhub/internal/ingest"
	"example.com/eventhub/internal/messaging"
	"example.com/eventhub/internal/metrics"
	"example.com/eventhub/internal/models"
	"example.com/eventhub/internal/repositories"
	"example.com/eventhub/internal/search"
	"example.com/eventhub/internal/ticketmaster"
	"example.com/eventhub/internal/tracing"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that periodically ingests events from the discovery API`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize database connections
	db, readOnlyDB, err := initDatabasesForWorker(cfg)
	if err != nil {
		return err
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without indexing")
		elasticClient = nil
	}

	// Initialize Service Bus notifier
	notifier, err := messaging.NewNotifier(cfg.Azure)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Service Bus notifier, continuing without notifications")
		notifier = nil
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize the ingestor. The seen-cache is owned by this single
	// ingestion task and never shared.
	ingestor := newIngestor(cfg, db, readOnlyDB, elasticClient, notifier, metricsCollector, tracer)

	// Start the ingestion scheduler
	g.Go(func() error {
		log.Info().Dur("interval", cfg.Ingest.Interval).Msg("Starting ingestion scheduler")

		// Create a scheduler
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		// Run the tick on startup and then on the fixed interval
		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Ingest.Interval),
			gocron.NewTask(func() {
				if err := ingestor.RunTick(ctx); err != nil {
					log.Error().Err(err).Msg("Ingestion tick failed")
				}
			}),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}

		// Start the scheduler
		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		// Shutdown waits for an in-flight tick to finish
		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	if notifier != nil {
		if err := notifier.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Service Bus notifier")
		}
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

func newIngestor(
	cfg config.Config,
	db, readOnlyDB *gorm.DB,
	elasticClient *search.ElasticClient,
	notifier *messaging.Notifier,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *ingest.Ingestor {
	eventRepo := repositories.NewEventRepository(db, readOnlyDB)
	seen := ingest.NewSeenCache(cfg.Ingest.CacheWindow)
	discovery := ticketmaster.NewClient(cfg.Ticketmaster)

	// Avoid typed-nil interfaces for the optional collaborators
	var indexer ingest.Indexer
	if elasticClient != nil {
		indexer = elasticClient
	}
	var busNotifier ingest.Notifier
	if notifier != nil {
		busNotifier = notifier
	}

	return ingest.NewIngestor(cfg.Ingest, eventRepo, discovery, seen, indexer, busNotifier, metricsCollector, tracer)
}

func initDatabasesForWorker(cfg config.Config) (*gorm.DB, *gorm.DB, error) {
	// TranslateError surfaces uniqueness violations as gorm.ErrDuplicatedKey,
	// which the idempotent insert paths depend on
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}

	// Initialize read-only database
	readOnlyDB, err := gorm.Open(postgres.Open(cfg.DB.ReadOnlyDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
	}

	// Auto-migrate only the write database
	if err := models.SetupModels(db); err != nil {
		return nil, nil, errors.Wrap(err, "failed to run migrations")
	}

	// Configure connection pools for both databases
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get underlying write DB connection")
	}

	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	readSqlDB, err := readOnlyDB.DB()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get underlying read-only DB connection")
	}

	readSqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	readSqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	readSqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	return db, readOnlyDB, nil
}

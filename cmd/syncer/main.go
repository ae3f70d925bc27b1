package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/FFD-Group/Tidio-Products/internal/checkpoint"
	"github.com/FFD-Group/Tidio-Products/internal/config"
	"github.com/FFD-Group/Tidio-Products/internal/destination/tidio"
	"github.com/FFD-Group/Tidio-Products/internal/domain"
	"github.com/FFD-Group/Tidio-Products/internal/publisher"
	"github.com/FFD-Group/Tidio-Products/internal/scheduler"
	"github.com/FFD-Group/Tidio-Products/internal/service"
	"github.com/FFD-Group/Tidio-Products/internal/source/magento"
	"github.com/FFD-Group/Tidio-Products/internal/storage/postgres"
	"github.com/FFD-Group/Tidio-Products/internal/transform"
)

var (
	configPath  string
	fullSync    bool
	resumeRef   string
	resumeLocal bool
)

func main() {
	root := &cobra.Command{
		Use:           "tidio-products",
		Short:         "Synchronizes the Magento product catalog to Tidio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync and exit",
		RunE:  runSync,
	}
	syncCmd.Flags().BoolVar(&fullSync, "full", false, "sync the full catalog instead of recent updates")
	syncCmd.Flags().StringVar(&resumeRef, "resume", "", "resume from a remote checkpoint reference")
	syncCmd.Flags().BoolVar(&resumeLocal, "resume-local", false, "resume from the local checkpoint file")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run syncs on the hourly schedule until stopped",
		RunE:  runSchedule,
	}

	root.AddCommand(syncCmd, scheduleCmd, newInspectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var result *domain.SyncResult
	switch {
	case resumeRef != "":
		result, err = svc.Resume(ctx, resumeRef)
	case resumeLocal:
		result, err = svc.Resume(ctx, "")
	default:
		kind := domain.SyncIncremental
		if fullSync {
			kind = domain.SyncFull
		}
		result, err = svc.Run(ctx, kind)
	}
	if err != nil {
		return err
	}

	if !result.Success() {
		return fmt.Errorf("sync incomplete: %d of %d batches unsent (resume with --resume %q)",
			len(result.Unsent), result.TotalBatches, result.RemoteRef)
	}
	return nil
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sched := scheduler.NewScheduler(svc, cfg.Schedule, cfg.Sync.RunTimeout, logger)
	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func buildService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.SyncService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	client := magento.NewClient(cfg.Magento, logger)
	catalog, err := magento.NewCatalog(client, cfg.Magento, logger)
	if err != nil {
		return nil, cleanup, err
	}
	enricher := magento.NewEnricher(client, logger)
	prices := magento.NewPriceResolver(client, cfg.Magento, logger)

	transformer := transform.New(transform.Config{
		HideDiscontinued:   cfg.Transform.HideDiscontinued,
		MaxFeatureLength:   cfg.Transform.MaxFeatureLength,
		ExcludedAttributes: cfg.Transform.ExcludedAttributes,
		BrandAttribute:     cfg.Transform.BrandAttribute,
		Currency:           cfg.Magento.Currency,
		MediaBaseURL:       cfg.Magento.MediaBaseURL,
		StoreBaseURL:       cfg.Magento.StoreBaseURL,
		WebsiteID:          cfg.Magento.WebsiteID,
	}, enricher, logger)

	delivery := tidio.NewClient(cfg.Tidio, logger)
	local := checkpoint.NewFileStore(cfg.Checkpoint.LocalPath)

	var remote service.RemoteStore
	if cfg.Checkpoint.Remote != nil {
		store, err := checkpoint.NewObjectStore(ctx, *cfg.Checkpoint.Remote, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect to checkpoint store: %w", err)
		}
		remote = store
	}

	var runs service.RunStore
	if cfg.Database != nil {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect to database: %w", err)
		}
		closers = append(closers, func() { db.Close() })
		runs = postgres.NewRunStore(db)
		logger.Info("connected to database")
	}

	var events service.Publisher
	if cfg.RabbitMQ != nil {
		rabbit, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		closers = append(closers, func() { rabbit.Close() })
		events = rabbit
	}

	svc := service.NewSyncService(
		catalog,
		enricher,
		prices,
		transformer,
		delivery,
		local,
		remote,
		runs,
		events,
		logger,
		service.Options{
			MaxBatchSize:     cfg.Tidio.MaxBatchSize,
			CheckpointEvery:  cfg.Checkpoint.Every,
			TransformWorkers: cfg.Sync.TransformWorkers,
		},
	)
	return svc, cleanup, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

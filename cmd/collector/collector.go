package main

import (
	"context"
	"sync"

	"github.com/nadavgil/water-metering-collector/internal/anomaly"
	"github.com/nadavgil/water-metering-collector/internal/citymind"
	"github.com/nadavgil/water-metering-collector/internal/config"
	"github.com/nadavgil/water-metering-collector/internal/db"
	"github.com/nadavgil/water-metering-collector/internal/mq"
	"github.com/nadavgil/water-metering-collector/internal/repository"
	"github.com/nadavgil/water-metering-collector/internal/service"
	"github.com/nadavgil/water-metering-collector/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startCollector(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	registry *citymind.Registry,
	repo *repository.Repository,
	publisher *mq.Publisher,
	detector *anomaly.Detector,
	validator *validator.Validator,
	commands *service.CommandService,
) error {
	// Create context for pollers and consumer, cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:    conn,
		Queue:         cfg.RabbitMQ.CommandQueue,
		DLQQueue:      cfg.RabbitMQ.CommandDLQQueue,
		Exchange:      cfg.RabbitMQ.CommandExchange,
		RoutingKey:    cfg.RabbitMQ.CommandRoutingKey,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       commands.HandleCommand,
	})
	if err != nil {
		cancel()
		return err
	}

	var pollers []*service.Poller
	for _, account := range cfg.Accounts {
		poller, err := service.NewPoller(account, registry, repo, publisher, detector, validator, cfg, logger)
		if err != nil {
			cancel()
			return err
		}
		pollers = append(pollers, poller)
	}

	var wg sync.WaitGroup

	// Register lifecycle hooks
	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting collector",
				zap.Int("accounts", len(pollers)),
				zap.String("command_queue", cfg.RabbitMQ.CommandQueue))

			if err := consumer.Start(ctx); err != nil {
				return err
			}

			for _, poller := range pollers {
				wg.Add(1)
				go func(p *service.Poller) {
					defer wg.Done()
					p.Run(ctx)
				}(poller)
			}

			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			wg.Wait()
			registry.Close()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("collector stopped gracefully")
			return nil
		},
	})

	return nil
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideAnomalyDetector creates a new anomaly detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
}

// ProvideValidator creates a new validator instance
func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Validation.MaxDailyConsumption)
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	return mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, logger)
}

// ProvideRegistry creates the session registry
func ProvideRegistry(logger *zap.Logger) *citymind.Registry {
	return citymind.NewRegistry(logger)
}

// ProvideCommandService creates the alert-setting command service
func ProvideCommandService(registry *citymind.Registry, logger *zap.Logger) *service.CommandService {
	return service.NewCommandService(registry, logger)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

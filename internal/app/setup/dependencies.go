package setup

import (
	"context"
	"errors"
	"fmt"

	"github.com/LavaJover/shvark-ib-service/internal/config"
	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/cache"
	publisher "github.com/LavaJover/shvark-ib-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/logger"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/migrate"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/postgres"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/postgres/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Dependencies struct {
	Config   *config.IBConfig
	Logger   *zap.Logger
	DB       *gorm.DB
	Store    domain.Store
	Metrics  *metrics.IBMetrics
	Gatherer prometheus.Gatherer

	KafkaPublisher      *publisher.DefaultKafkaPublisher
	WithdrawalPublisher domain.WithdrawalEventPublisher
	Subscriber          domain.SubscriberPort

	Redis     *redis.Client
	TreeCache domain.TreeCache
}

func InitializeDependencies(ctx context.Context) (*Dependencies, error) {
	cfg := config.MustLoad()

	zl, err := logger.New(cfg.LogConfig, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	db, err := postgres.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := migrate.RunMigrations(db, cfg.IBDB.MigrationsPath, zl); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	brokers := []string{cfg.KafkaService.Addr()}
	kafkaPublisher := publisher.NewDefaultKafkaPublisher(brokers)

	deps := &Dependencies{
		Config:              cfg,
		Logger:              zl,
		DB:                  db,
		Store:               repository.NewDefaultStore(db),
		Metrics:             metrics.NewIBMetrics(prometheus.DefaultRegisterer),
		Gatherer:            prometheus.DefaultGatherer,
		KafkaPublisher:      kafkaPublisher,
		WithdrawalPublisher: publisher.NewWithdrawalPublisher(kafkaPublisher, cfg.KafkaService.WithdrawalTopic),
		Subscriber:          publisher.NewDefaultKafkaSubscriber(brokers, zl.Named("kafka")),
	}

	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			// The tree cache is an optimisation; run uncached.
			zl.Warn("redis unavailable, display trees will not be cached", zap.Error(err))
		} else {
			deps.Redis = client
			deps.TreeCache = cache.NewRedisTreeCache(client, cfg.Redis.TreeTTL)
		}
	}

	return deps, nil
}

// Close releases connections in reverse order of creation.
func (d *Dependencies) Close() error {
	var errs []error
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.KafkaPublisher != nil {
		errs = append(errs, d.KafkaPublisher.Close())
	}
	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	_ = d.Logger.Sync()
	return errors.Join(errs...)
}

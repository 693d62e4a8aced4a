// Package app wires configuration into the services shared by the server
// and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/moodbite/backend/config"
	"github.com/moodbite/backend/internal/domain"
	"github.com/moodbite/backend/internal/infrastructure/cache"
	"github.com/moodbite/backend/internal/infrastructure/dynamodb"
	"github.com/moodbite/backend/internal/infrastructure/memstore"
	"github.com/moodbite/backend/internal/infrastructure/observability"
	"github.com/moodbite/backend/internal/infrastructure/openfoodfacts"
	"github.com/moodbite/backend/internal/infrastructure/sqlite"
	"github.com/moodbite/backend/internal/usecase"
)

const cacheCleanupInterval = 10 * time.Minute

// App holds the wired dependencies
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Collector

	Store   domain.Store
	Cache   *cache.MemoryCache
	Catalog *openfoodfacts.Client
	Feed    *usecase.ChangeFeed

	Scans      *usecase.ScanService
	Dashboards *usecase.DashboardService
	Seeder     *usecase.Seeder
}

// New builds every dependency from cfg
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewCollector("moodbite")
	productCache := cache.NewMemoryCache(cacheCleanupInterval)
	feed := usecase.NewChangeFeed()

	catalog := openfoodfacts.NewClient(openfoodfacts.ClientConfig{
		BaseURL:           cfg.Catalog.BaseURL,
		UserAgent:         cfg.Catalog.UserAgent,
		Timeout:           cfg.Catalog.Timeout,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		Burst:             cfg.Catalog.Burst,
	}, logger, metrics)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Store:   store,
		Cache:   productCache,
		Catalog: catalog,
		Feed:    feed,
		Scans: usecase.NewScanService(productCache, catalog, store, feed, logger, metrics, usecase.ScanServiceConfig{
			CacheTTL: cfg.Cache.TTL,
		}),
		Dashboards: usecase.NewDashboardService(store, store, usecase.DashboardServiceConfig{
			SugarLimit: cfg.Dashboard.SugarLimitGrams,
		}),
		Seeder: usecase.NewSeeder(catalog, store, logger, metrics, usecase.SeederConfig{
			PageSize:     cfg.Seeder.PageSize,
			MaxAttempts:  cfg.Seeder.MaxAttempts,
			RetryDelay:   cfg.Seeder.RetryDelay,
			FetchTimeout: cfg.Seeder.FetchTimeout,
			UseLock:      cfg.Seeder.UseLock,
			LockTTL:      cfg.Seeder.LockTTL,
		}),
	}, nil
}

// OpenStore opens the store backend selected by cfg.Store.Type
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.Store, error) {
	switch cfg.Store.Type {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), nil

	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.Store.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.StoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Store.DynamoDB.Region),
		)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}

		endpoint := cfg.Store.DynamoDB.Endpoint
		client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		return dynamodb.New(client, cfg.Store.DynamoDB.Table, logger), nil

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

// Close releases the cache janitor and the store
func (a *App) Close() error {
	a.Cache.Close()
	return a.Store.Close()
}

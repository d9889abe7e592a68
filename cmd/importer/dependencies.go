package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/FACorreiaa/movement-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/notify"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/parser"
	importrepo "github.com/FACorreiaa/movement-ingest/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/movement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/movement-ingest/internal/domain/tenant"
	"github.com/FACorreiaa/movement-ingest/internal/metrics"
	"github.com/FACorreiaa/movement-ingest/pkg/config"
	"github.com/FACorreiaa/movement-ingest/pkg/db"
	"github.com/FACorreiaa/movement-ingest/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Redis  *redis.Client
	Logger *slog.Logger

	Gatherer *prometheus.Registry
	Metrics  *metrics.Metrics

	// Stores
	Movements *importrepo.MovementStore
	History   *importrepo.HistoryStore
	Archive   storage.Storage

	// Services
	Tenants       tenant.Resolver
	Hinter        *categorization.Hinter
	Publisher     importservice.Publisher
	Registry      *parser.Registry
	ImportService *importservice.ImportService
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initStores(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init stores: %w", err)
	}

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Debug("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	database, err := db.New(ctx, db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        int32(d.Config.Database.MaxConns),
		MinConns:        int32(d.Config.Database.MinConns),
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (d *Dependencies) initStores() error {
	d.Movements = importrepo.NewMovementStore(d.DB.Pool, d.Logger)
	d.History = importrepo.NewHistoryStore(d.DB.Pool)

	archive, err := storage.NewLocalStorage(d.Config.Archive.Path)
	if err != nil {
		return fmt.Errorf("failed to init file archive: %w", err)
	}
	d.Archive = archive
	return nil
}

func (d *Dependencies) initServices() error {
	d.Gatherer = prometheus.NewRegistry()
	d.Metrics = metrics.New(d.Gatherer)

	resolver, err := d.tenantResolver()
	if err != nil {
		return err
	}
	d.Tenants = resolver

	d.Hinter = categorization.NewHinter(nil)

	if d.Config.Notify.BaseURL != "" {
		d.Publisher = notify.NewHTTPPublisher(
			d.Config.Notify.BaseURL,
			d.Config.Notify.FallbackURL,
			d.Config.Notify.Timeout,
			d.Logger,
		).WithFailureHook(d.Metrics.EventDropped)
	} else {
		d.Publisher = notify.NewLogPublisher(d.Logger)
	}

	d.Registry = parser.DefaultRegistry()
	d.ImportService = importservice.NewImportService(
		d.Registry,
		d.Tenants,
		d.Movements,
		d.History,
		d.Publisher,
		d.Logger,
	).
		WithCategoryHinter(d.Hinter).
		WithDuplicateFinder(d.Movements).
		WithMetrics(d.Metrics).
		WithHomeCurrency(d.Config.Import.HomeCurrency).
		WithLookupTimeout(d.Config.Import.DuplicateLookupTimeout)
	return nil
}

// tenantResolver pins a static organization when configured and otherwise
// reads memberships, through Redis when a URL is set.
func (d *Dependencies) tenantResolver() (tenant.Resolver, error) {
	if d.Config.Import.OrganizationID > 0 {
		return tenant.StaticResolver(d.Config.Import.OrganizationID), nil
	}

	var resolver tenant.Resolver = tenant.NewPostgresResolver(d.DB.Pool)
	if d.Config.Redis.URL == "" {
		return resolver, nil
	}

	opts, err := redis.ParseURL(d.Config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	d.Redis = redis.NewClient(opts)
	return tenant.NewCachedResolver(resolver, d.Redis, d.Config.Redis.TenantCacheTTL, d.Logger), nil
}

// Flush writes the metrics textfile when enabled.
func (d *Dependencies) Flush() {
	if !d.Config.Observability.MetricsEnabled || d.Gatherer == nil {
		return
	}
	if err := prometheus.WriteToTextfile(d.Config.Observability.MetricsFile, d.Gatherer); err != nil {
		d.Logger.Warn("failed to write metrics file", "path", d.Config.Observability.MetricsFile, "error", err)
	}
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn("failed to close redis client", "error", err)
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/andon-board/config"
	"github.com/upb/andon-board/handlers"
	"github.com/upb/andon-board/internal/observability"
	"github.com/upb/andon-board/middleware"
	"github.com/upb/andon-board/repositories"
	"github.com/upb/andon-board/repositories/postgres"
	"github.com/upb/andon-board/services/admin"
	"github.com/upb/andon-board/services/analytics"
	"github.com/upb/andon-board/services/audit"
	"github.com/upb/andon-board/services/auth"
	"github.com/upb/andon-board/services/calls"
	"github.com/upb/andon-board/services/display"
	"github.com/upb/andon-board/services/notify"
	"github.com/upb/andon-board/services/ratelimit"
	"github.com/upb/andon-board/services/tenants"
	"github.com/upb/andon-board/services/views"
	"go.uber.org/zap"
)

// Dependencies holds everything the HTTP layer needs. It is the single
// wiring point of the application.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	RepoFactory *postgres.RepositoryFactory
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager

	// Background call event trail and the Telegram sink it backs
	Events   *audit.Service
	Notifier notify.Notifier

	// Domain services
	Tenants   *tenants.Service
	Auth      *auth.Service
	Calls     *calls.Service
	Views     *views.Service
	Analytics *analytics.Service
	Admin     *admin.Service
	Planner   *display.Planner

	// RateLimiter guards the public endpoints. It is nil when disabled or
	// when no database is attached.
	RateLimiter *ratelimit.Service

	// background maintenance loops, cancelled by Close
	workers     context.Context
	stopWorkers context.CancelFunc

	AuthMiddleware   *middleware.AuthMiddleware
	TenantMiddleware *middleware.TenantMiddleware
}

// NewDependencies opens the database, creates the schema and wires every
// service on top of it.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initServices(); err != nil {
		_ = deps.RepoFactory.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initRateLimiter()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewDependenciesFromRepositories wires the services on top of repositories
// that are already open. No database handle is attached.
func NewDependenciesFromRepositories(cfg *config.Config, logger *zap.Logger, repos *repositories.Repositories, txMgr repositories.TransactionManager) (*Dependencies, error) {
	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Metrics:   observability.NewMetrics(),
		Repos:     repos,
		TxManager: txMgr,
	}
	if err := deps.initServices(); err != nil {
		return nil, err
	}
	return deps, nil
}

func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Repos = factory.NewRepositories()
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()),
		zap.Bool("separate_events_db", cfg.EventsDatabase != nil))

	return nil
}

// initServices builds the service graph from Repos and TxManager, which must
// already be set.
func (d *Dependencies) initServices() error {
	if d.Repos == nil || d.TxManager == nil {
		return errors.New("repositories not initialized")
	}
	cfg := d.Config

	d.workers, d.stopWorkers = context.WithCancel(context.Background())

	d.Events = audit.NewService(d.Repos.CallEvents, d.Metrics, d.Logger, audit.Config{
		BufferSize:  cfg.Events.BufferSize,
		WorkerCount: cfg.Events.Workers,
	})
	if err := d.Events.Start(); err != nil {
		return fmt.Errorf("failed to start call event workers: %w", err)
	}

	d.Notifier = notify.New(cfg.Telegram, d.Metrics, d.Events, d.Logger)
	formatter := notify.NewFormatter(cfg.Notify.Location())

	d.Tenants = tenants.NewService(d.Repos, d.TxManager, d.Events, d.Logger)
	if tc := cfg.TenantCache; tc.Size > 0 && tc.TTL > 0 {
		cache := tenants.NewSlugCache(tc.Size, tc.TTL)
		d.Tenants.WithCache(cache)
		go cache.StartCleanupWorker(d.workers, tc.TTL)
	}
	d.Auth = auth.NewService(d.Repos, cfg.Auth, d.Logger)
	d.Calls = calls.NewService(d.Repos, d.TxManager, d.Notifier, formatter, d.Events, d.Metrics, d.Logger)
	d.Views = views.NewService(d.Repos, cfg.Analytics.Location(), d.Logger)
	d.Analytics = analytics.NewService(d.Repos, cfg.Analytics, d.Logger)
	d.Admin = admin.NewService(d.Repos, d.Events, d.Logger)
	d.Planner = display.NewPlanner(display.DefaultReminderInterval)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Auth, d.Logger)
	d.TenantMiddleware = middleware.NewTenantMiddleware(d.Tenants, d.Logger)

	d.Logger.Info("services initialized",
		zap.Bool("telegram", cfg.Telegram.Enabled()),
		zap.Int("event_workers", cfg.Events.Workers))
	return nil
}

func (d *Dependencies) initRateLimiter() {
	rl := d.Config.RateLimit
	if !rl.Enabled {
		d.Logger.Warn("rate limiting disabled")
		return
	}

	d.RateLimiter = ratelimit.NewService(d.DB.DB, d.Logger)
	go d.RateLimiter.StartCleanupWorker(d.workers, rl.CleanupInterval, rl.Retention)
}

// HealthChecks returns the readiness probes for the open databases
func (d *Dependencies) HealthChecks() map[string]handlers.Pinger {
	checks := make(map[string]handlers.Pinger)
	if d.DB != nil {
		checks["database"] = d.DB
	}
	if d.RepoFactory != nil {
		if eventsDB := d.RepoFactory.GetEventsDB(); eventsDB != nil {
			checks["events_database"] = eventsDB
		}
	}
	return checks
}

// Close drains the event workers, then closes the database and syncs the logger
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopWorkers != nil {
		d.stopWorkers()
		d.stopWorkers = nil
	}

	if d.Events != nil {
		if err := d.Events.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain call events: %w", err))
		}
		d.Events = nil
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}

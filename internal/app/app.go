// Package app assembles the ledger's runtime from configuration. The API
// server and the ledgerctl command share it.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-ledger/internal/alerting"
	"github.com/sjperalta/fintera-ledger/internal/automation"
	"github.com/sjperalta/fintera-ledger/internal/clock"
	"github.com/sjperalta/fintera-ledger/internal/config"
	"github.com/sjperalta/fintera-ledger/internal/database"
	"github.com/sjperalta/fintera-ledger/internal/events"
	"github.com/sjperalta/fintera-ledger/internal/jobs"
	"github.com/sjperalta/fintera-ledger/internal/lock"
	"github.com/sjperalta/fintera-ledger/internal/repository"
	"github.com/sjperalta/fintera-ledger/internal/services"
	"github.com/sjperalta/fintera-ledger/internal/storage"
	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

// App is a wired ledger runtime
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Repos     *repository.Repositories
	Bus       *events.InMemoryBus
	Engine    *automation.Engine
	Scheduler *automation.Scheduler
	Worker    *jobs.Worker
	Services  *services.Services

	redis  *redis.Client
	ownsDB bool
}

// New connects to the database and builds every component. Nothing runs
// until Start is called.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	a, err := NewWithDB(ctx, cfg, db)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	a.ownsDB = true
	return a, nil
}

// NewWithDB builds the runtime around an open database. Close leaves db open.
func NewWithDB(ctx context.Context, cfg *config.Config, db *gorm.DB) (*App, error) {
	a := &App{Config: cfg, DB: db}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisURL != "" {
		rdb, err := lock.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = rdb
		locker = lock.NewRedisLocker(rdb)
	}

	c := clock.System()
	notifier := alerting.New(cfg.SentryDSN != "")
	a.Repos = repository.NewRepositories(db)
	a.Engine = automation.NewEngine(automation.StoresFrom(a.Repos),
		automation.WithClock(c),
		automation.WithNotifier(notifier),
		automation.WithMaxParallel(cfg.Automation.MaxParallelRules),
		automation.WithSlowThreshold(cfg.Automation.SlowExecutionThreshold),
	)
	a.Bus = events.NewInMemoryBus()
	a.Engine.Register(a.Bus)

	a.Scheduler = automation.NewScheduler(a.Repos.Rule, a.Engine, c, locker, logger.With("scheduler"))
	a.Scheduler.SetLockTTL(cfg.Automation.TickLockTTL)

	a.Worker = jobs.NewWorker(cfg.WorkerCount)
	a.Services = services.NewServices(a.Repos, a.Engine, store, notifier, a.Worker, cfg, c)
	a.Services.Rule.SetScheduler(a.Scheduler)
	return a, nil
}

// Start arms scheduled rules and the recurring jobs
func (a *App) Start(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	a.Services.Job.ScheduleReconciliation(a.Config.Reconciliation.Interval)
	a.Services.Job.ScheduleSchedulerRefresh(a.Config.Automation.SchedulerRefresh, a.Scheduler)
	logger.Info("Scheduled recurring jobs",
		"reconciliation_interval", a.Config.Reconciliation.Interval,
		"scheduler_refresh", a.Config.Automation.SchedulerRefresh)
	return nil
}

// SubscribePubSub starts pulling upstream events when a subscription is
// configured. It returns a stop function; with no subscription it is a no-op.
func (a *App) SubscribePubSub(ctx context.Context) (func(), error) {
	ps := a.Config.PubSub
	if ps.Subscription == "" {
		return func() {}, nil
	}
	src, err := events.NewPubSubSource(ctx, events.PubSubConfig{
		ProjectID:       ps.ProjectID,
		Subscription:    ps.Subscription,
		CredentialsJSON: ps.CredentialsJSON,
	}, a.Bus, automation.IsPermanent)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := src.Run(runCtx); err != nil {
			logger.Error("Pub/Sub subscription stopped", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
		_ = src.Close()
	}, nil
}

// Close stops the scheduler and worker and releases connections
func (a *App) Close() {
	a.Scheduler.Stop()
	a.Worker.Shutdown()
	a.Engine.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if !a.ownsDB {
		return
	}
	if err := database.Close(a.DB); err != nil {
		logger.Warn("Failed to close database", "error", err)
	}
}

package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	apiHandler "github.com/remindgo/backend/api/handler"
	"github.com/remindgo/backend/internal/config"
	"github.com/remindgo/backend/internal/infrastructure/boltdb"
	"github.com/remindgo/backend/internal/infrastructure/monitor"
	pgInfra "github.com/remindgo/backend/internal/infrastructure/postgres"
	redisInfra "github.com/remindgo/backend/internal/infrastructure/redis"
	"github.com/remindgo/backend/internal/router"
	"github.com/remindgo/backend/internal/services"
	"github.com/remindgo/backend/internal/services/lifecycle"
	"github.com/remindgo/backend/pkg/httpcontext"
	"github.com/remindgo/backend/pkg/logger"
	"github.com/remindgo/backend/repository"
	boltRepo "github.com/remindgo/backend/repository/bolt"
	pgRepo "github.com/remindgo/backend/repository/postgres"
	"github.com/remindgo/backend/scheduler"
	"github.com/remindgo/backend/scheduler/redisq"
	"github.com/remindgo/backend/scheduler/timer"
	reminderUC "github.com/remindgo/backend/usecase/reminder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	var (
		store  repository.ReminderStore
		pool   *pgxpool.Pool
		boltDB *bolt.DB
	)
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}
		pool, err = pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		store = pgRepo.NewReminderStore(pool)
	default:
		boltDB, err = boltdb.Open(cfg.Bolt.Path)
		if err != nil {
			zapLogger.Fatal("failed to open bolt store", zap.Error(err))
		}
		manager.Register("bolt", func(ctx context.Context) error {
			return boltDB.Close()
		})
		store, err = boltRepo.NewReminderStore(boltDB)
		if err != nil {
			zapLogger.Fatal("failed to prepare bolt store", zap.Error(err))
		}
	}

	var (
		trigger     scheduler.TriggerScheduler
		fireSource  scheduler.Source
		redisClient *redislib.Client
	)
	switch cfg.Scheduler.Driver {
	case config.SchedulerRedis:
		redisClient, err = redisInfra.NewClient(cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
		queue := redisq.New(redisClient, cfg.Scheduler.PollInterval, zapLogger)
		queue.Start()
		manager.Register("redis_scheduler", func(ctx context.Context) error {
			queue.Stop()
			return nil
		})
		trigger, fireSource = queue, queue
	default:
		timers := timer.New(zapLogger)
		manager.Register("timer_scheduler", func(ctx context.Context) error {
			timers.Stop()
			return nil
		})
		trigger, fireSource = timers, timers
	}

	reminders := reminderUC.New(store, trigger, zapLogger)
	reminders.Bind(fireSource)
	manager.Register("reminder_manager", func(ctx context.Context) error {
		reminders.Close()
		return nil
	})

	feed := services.NewAlertFeed(cfg.Alerts.Limit, zapLogger)
	releaseFeed := reminders.Notify(feed.Record)
	manager.Register("alert_feed", func(ctx context.Context) error {
		releaseFeed()
		return nil
	})

	sweeper := services.NewSweeper(reminders, zapLogger, services.SweeperConfig{
		Interval: cfg.Sweep.Interval,
	})
	sweeper.Start()
	manager.Register("sweeper", func(ctx context.Context) error {
		sweeper.Stop(ctx)
		return nil
	})

	mon := monitor.New(pool, redisClient, boltDB, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Reminder: apiHandler.NewReminderHandler(reminders, ctxAdapter, zapLogger),
		Alert:    apiHandler.NewAlertHandler(feed, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	r := router.New(handlers)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

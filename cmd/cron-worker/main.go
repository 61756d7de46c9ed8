package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brewline/brewline-backend/internal/cron"
	"github.com/brewline/brewline-backend/internal/menu"
	"github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/internal/tracking"
	"github.com/brewline/brewline-backend/pkg/config"
	"github.com/brewline/brewline-backend/pkg/db"
	"github.com/brewline/brewline-backend/pkg/logger"
	"github.com/brewline/brewline-backend/pkg/metrics"
	"github.com/brewline/brewline-backend/pkg/migrate"
	"github.com/brewline/brewline-backend/pkg/redis"
)

// noLocalSubscribers backs the relay in a process that serves no sockets.
type noLocalSubscribers struct{}

func (noLocalSubscribers) Publish(context.Context, tracking.StatusEvent) error { return nil }

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	// Without the relay, cancels made here reach no websocket clients.
	var notifier orders.StatusNotifier
	if cfg.FeatureFlags.EnableWSRelay {
		relay, err := tracking.NewRedisRelay(redisClient, cfg.Tracking.RelayChannel, noLocalSubscribers{}, logg)
		if err != nil {
			logg.Error(ctx, "failed to create status relay", err)
			os.Exit(1)
		}
		notifier = relay
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ledger, err := orders.NewLedger(ordersRepo, menu.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(ctx, "failed to create order ledger", err)
		os.Exit(1)
	}
	machine, err := orders.NewStateMachine(ledger, ordersRepo, dbClient, notifier, logg)
	if err != nil {
		logg.Error(ctx, "failed to create order state machine", err)
		os.Exit(1)
	}

	cronMetrics := metrics.NewCronMetrics(prometheus.DefaultRegisterer)
	ttlJob, err := cron.NewOrderTTLJob(cron.OrderTTLJobParams{
		Logger:        logg,
		Metrics:       cronMetrics,
		PendingReader: ledger,
		Machine:       machine,
		TTL:           cfg.Cron.PendingTTL,
		SessionTTL:    cfg.Cron.SessionTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to create order ttl job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(ttlJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

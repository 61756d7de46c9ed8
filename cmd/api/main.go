package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/brewline/brewline-backend/api/routes"
	"github.com/brewline/brewline-backend/internal/cart"
	"github.com/brewline/brewline-backend/internal/checkout"
	"github.com/brewline/brewline-backend/internal/menu"
	"github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/internal/payments"
	"github.com/brewline/brewline-backend/internal/tracking"
	"github.com/brewline/brewline-backend/pkg/config"
	"github.com/brewline/brewline-backend/pkg/db"
	"github.com/brewline/brewline-backend/pkg/enums"
	"github.com/brewline/brewline-backend/pkg/logger"
	"github.com/brewline/brewline-backend/pkg/metrics"
	"github.com/brewline/brewline-backend/pkg/migrate"
	"github.com/brewline/brewline-backend/pkg/paypal"
	"github.com/brewline/brewline-backend/pkg/redis"
	pkgstripe "github.com/brewline/brewline-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)
	trackingMetrics := metrics.NewTrackingMetrics(registry)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	subscribers := tracking.NewRegistry(logg, trackingMetrics)
	dispatcher := tracking.NewDispatcher(subscribers, cfg.Tracking.QueueSize, logg, trackingMetrics)
	go dispatcher.Run(ctx)

	var notifier orders.StatusNotifier = dispatcher
	if cfg.FeatureFlags.EnableWSRelay {
		relay, err := tracking.NewRedisRelay(redisClient, cfg.Tracking.RelayChannel, dispatcher, logg)
		if err != nil {
			logg.Error(ctx, "failed to create status relay", err)
			os.Exit(1)
		}
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "status relay stopped", err)
			}
		}()
		notifier = relay
	}

	currency, err := enums.ParseCurrency(cfg.Payments.Currency)
	if err != nil {
		logg.Error(ctx, "invalid payments currency", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ledger, err := orders.NewLedger(ordersRepo, menu.NewRepository(dbClient.DB()), dbClient, orders.WithCurrency(currency))
	if err != nil {
		logg.Error(ctx, "failed to create order ledger", err)
		os.Exit(1)
	}
	machine, err := orders.NewStateMachine(ledger, ordersRepo, dbClient, notifier, logg)
	if err != nil {
		logg.Error(ctx, "failed to create order state machine", err)
		os.Exit(1)
	}
	checkoutService, err := checkout.NewService(dbClient, cart.NewRepository(dbClient.DB()), ledger, logg)
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	gateways, err := buildGateways(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to configure payment gateways", err)
		os.Exit(1)
	}
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Orders:   ledger,
		Machine:  machine,
		Gateways: gateways,
		Timeout:  cfg.Payments.Timeout,
		Logger:   logg,
		Metrics:  paymentMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payments service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			httpMetrics,
			checkoutService,
			ledger,
			machine,
			paymentsService,
			subscribers,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(serverCtx, "graceful shutdown failed", err)
	}
	select {
	case <-dispatcher.Done():
	case <-shutdownCtx.Done():
	}
	logg.Info(serverCtx, "api server stopped")
}

func buildGateways(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*payments.Registry, error) {
	var gateways []payments.Gateway
	if cfg.PayPal.Enabled() {
		client, err := paypal.NewClient(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, paypal.WithBaseURL(cfg.PayPal.BaseURL))
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, payments.NewPayPalGateway(client))
	} else {
		logg.Warn(ctx, "paypal credentials missing; paypal checkout disabled")
	}
	if cfg.FeatureFlags.EnableStripe && cfg.Stripe.APIKey != "" {
		client, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, payments.NewStripeGateway(client.PaymentIntents()))
	}
	return payments.NewRegistry(gateways...)
}

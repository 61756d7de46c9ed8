package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brewline/brewline-backend/api/controllers"
	ordercontrollers "github.com/brewline/brewline-backend/api/controllers/orders"
	paymentcontrollers "github.com/brewline/brewline-backend/api/controllers/payments"
	trackingcontrollers "github.com/brewline/brewline-backend/api/controllers/tracking"
	"github.com/brewline/brewline-backend/api/middleware"
	checkoutsvc "github.com/brewline/brewline-backend/internal/checkout"
	"github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/internal/payments"
	"github.com/brewline/brewline-backend/internal/tracking"
	"github.com/brewline/brewline-backend/pkg/config"
	"github.com/brewline/brewline-backend/pkg/logger"
	"github.com/brewline/brewline-backend/pkg/metrics"
	"github.com/brewline/brewline-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	checkoutService checkoutsvc.Service,
	ledger orders.Ledger,
	machine orders.StateMachine,
	paymentsService payments.Service,
	registry *tracking.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	// A nil *redis.Client must not reach the middleware as a non-nil interface.
	var (
		idempotencyStore redis.IdempotencyStore
		rateLimitStore   redis.RateLimitStore
		readiness        = map[string]controllers.Pinger{"db": dbP}
	)
	if redisClient != nil {
		if cfg.FeatureFlags.EnableIdempKeys {
			idempotencyStore = redisClient
		}
		rateLimitStore = redisClient
		readiness["redis"] = redisClient
	}
	idempotent := middleware.Idempotency(idempotencyStore, cfg.Redis.IdempotencyTTL, logg)
	paymentsPolicy := middleware.NewRateLimitPolicy("payments", cfg.RateLimit.Window, cfg.RateLimit.PaymentLimit)
	wsPolicy := middleware.NewRateLimitPolicy("ws", cfg.RateLimit.Window, cfg.RateLimit.WSConnectLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	r.With(middleware.RateLimit(wsPolicy, rateLimitStore, logg)).
		Get("/ws/orders/{orderId}", trackingcontrollers.Stream(trackingcontrollers.StreamParams{
			Orders:         ledger,
			Registry:       registry,
			JWT:            cfg.JWT,
			SendBuffer:     cfg.Tracking.SendBuffer,
			IdleTimeout:    cfg.Tracking.IdleTimeout,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			Logger:         logg,
		}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(idempotent).Post("/checkout", ordercontrollers.Checkout(checkoutService, logg))
			r.Get("/", ordercontrollers.List(ledger, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ledger, logg))
			r.Get("/{orderId}/status", ordercontrollers.Status(ledger, logg))
			r.With(middleware.RequireStaff(logg)).Patch("/{orderId}/status", ordercontrollers.UpdateStatus(machine, logg))
		})

		r.Route("/payments/{provider}", func(r chi.Router) {
			r.Use(middleware.RateLimit(paymentsPolicy, rateLimitStore, logg))
			r.Use(idempotent)
			r.Post("/create", paymentcontrollers.Create(paymentsService, logg))
			r.Post("/capture", paymentcontrollers.Capture(paymentsService, logg))
		})

		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))
			r.Get("/", ordercontrollers.AdminList(ledger, logg))
			r.Patch("/{orderId}/status", ordercontrollers.UpdateStatus(machine, logg))
		})
	})

	return r
}

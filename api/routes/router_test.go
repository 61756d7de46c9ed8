package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/brewline/brewline-backend/internal/cart"
	checkoutsvc "github.com/brewline/brewline-backend/internal/checkout"
	"github.com/brewline/brewline-backend/internal/menu"
	"github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/internal/payments"
	"github.com/brewline/brewline-backend/internal/tracking"
	pkgAuth "github.com/brewline/brewline-backend/pkg/auth"
	"github.com/brewline/brewline-backend/pkg/config"
	"github.com/brewline/brewline-backend/pkg/db"
	"github.com/brewline/brewline-backend/pkg/db/dbtest"
	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	"github.com/brewline/brewline-backend/pkg/logger"
	"github.com/brewline/brewline-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "brewline",
			ExpirationMinutes: 60,
		},
		Tracking:     config.TrackingConfig{SendBuffer: 4},
		FeatureFlags: config.FeatureFlagsConfig{EnableIdempKeys: true},
		RateLimit:    config.RateLimitConfig{Window: time.Minute, PaymentLimit: 5, WSConnectLimit: 5},
	}
}

type testRouter struct {
	handler http.Handler
	seed    func(userID int64) models.Order
}

func newTestRouter(t *testing.T, cfg *config.Config) testRouter {
	t.Helper()
	conn := dbtest.Open(t)
	tx := db.FromConn(conn)
	logg := logger.Nop()

	repo := orders.NewRepository(conn)
	ledger, err := orders.NewLedger(repo, menu.NewRepository(conn), tx)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	registry := tracking.NewRegistry(logg, nil)
	machine, err := orders.NewStateMachine(ledger, repo, tx, nil, logg)
	if err != nil {
		t.Fatalf("state machine: %v", err)
	}
	checkout, err := checkoutsvc.NewService(tx, cart.NewRepository(conn), ledger, logg)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	gateways, err := payments.NewRegistry()
	if err != nil {
		t.Fatalf("gateways: %v", err)
	}
	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Orders:   ledger,
		Machine:  machine,
		Gateways: gateways,
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("payments: %v", err)
	}

	reg := prometheus.NewRegistry()
	handler := NewRouter(cfg, logg, stubPinger{}, nil, reg, metrics.NewHTTPMetrics(reg),
		checkout, ledger, machine, paymentsSvc, registry)

	return testRouter{
		handler: handler,
		seed: func(userID int64) models.Order {
			return dbtest.SeedOrder(t, conn, models.Order{UserID: userID, TotalAmount: decimal.NewFromInt(4)})
		},
	}
}

func buildToken(t *testing.T, cfg *config.Config, userID int64, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (tr testRouter) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	tr.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	for _, path := range []string{"/health/live", "/health/ready"} {
		if resp := tr.do(t, http.MethodGet, path, "", ""); resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsEndpointExposesHTTPMetrics(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	tr.do(t, http.MethodGet, "/health/live", "", "")

	resp := tr.do(t, http.MethodGet, "/metrics", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "/health/live") {
		t.Fatalf("expected route label in metrics output")
	}
}

func TestOrdersRequireJWT(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	resp := tr.do(t, http.MethodGet, "/orders", "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestStatusUpdateRequiresStaff(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(t, cfg)
	order := tr.seed(5)
	path := "/orders/" + strconv.FormatInt(order.ID, 10) + "/status"

	resp := tr.do(t, http.MethodPatch, path, `{"status":"ACCEPTED"}`, buildToken(t, cfg, 5, enums.UserRoleCustomer))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	resp = tr.do(t, http.MethodPatch, path, `{"status":"ACCEPTED"}`, buildToken(t, cfg, 99, enums.UserRoleStaff))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminOrdersRequireStaff(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(t, cfg)
	tr.seed(5)

	resp := tr.do(t, http.MethodGet, "/admin/orders", "", buildToken(t, cfg, 5, enums.UserRoleCustomer))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}
	resp = tr.do(t, http.MethodGet, "/admin/orders?limit=10", "", buildToken(t, cfg, 1, enums.UserRoleAdmin))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestUnknownPaymentProvider(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(t, cfg)
	order := tr.seed(5)

	body := `{"orderId":` + strconv.FormatInt(order.ID, 10) + `}`
	resp := tr.do(t, http.MethodPost, "/payments/venmo/create", body, buildToken(t, cfg, 5, enums.UserRoleCustomer))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCheckoutWithoutRedisStillServes(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/orders/checkout", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, 5, enums.UserRoleCustomer))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	tr.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected empty cart 400 got %d", resp.Code)
	}
}

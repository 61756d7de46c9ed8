package orders

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/brewline/brewline-backend/api/middleware"
	"github.com/brewline/brewline-backend/internal/cart"
	checkoutsvc "github.com/brewline/brewline-backend/internal/checkout"
	"github.com/brewline/brewline-backend/internal/menu"
	internalorders "github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/pkg/db"
	"github.com/brewline/brewline-backend/pkg/db/dbtest"
	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	"github.com/brewline/brewline-backend/pkg/logger"
)

type fixture struct {
	conn   *gorm.DB
	router chi.Router
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	tx := db.FromConn(conn)
	repo := internalorders.NewRepository(conn)
	ledger, err := internalorders.NewLedger(repo, menu.NewRepository(conn), tx)
	require.NoError(t, err)
	machine, err := internalorders.NewStateMachine(ledger, repo, tx, nil, logger.Nop())
	require.NoError(t, err)
	checkout, err := checkoutsvc.NewService(tx, cart.NewRepository(conn), ledger, logger.Nop())
	require.NoError(t, err)

	logg := logger.Nop()
	r := chi.NewRouter()
	r.Post("/orders/checkout", Checkout(checkout, logg))
	r.Get("/orders", List(ledger, logg))
	r.Get("/orders/{orderId}", Detail(ledger, logg))
	r.Get("/orders/{orderId}/status", Status(ledger, logg))
	r.Patch("/orders/{orderId}/status", UpdateStatus(machine, logg))
	r.Get("/admin/orders", AdminList(ledger, logg))
	return fixture{conn: conn, router: r}
}

func (f fixture) do(t *testing.T, method, path, body string, userID int64, role enums.UserRole) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	ctx := middleware.WithUserID(req.Context(), userID)
	ctx = middleware.WithRole(ctx, role)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req.WithContext(ctx))
	return resp
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func seedPending(t *testing.T, f fixture, userID int64) models.Order {
	return dbtest.SeedOrder(t, f.conn, models.Order{UserID: userID, TotalAmount: decimal.RequireFromString("7.00")})
}

func TestCheckoutCreatesOrder(t *testing.T) {
	f := newFixture(t)
	latte := dbtest.SeedMenuItem(t, f.conn, "Latte", "3.50", true)
	dbtest.SeedCartItem(t, f.conn, 5, latte.ID, 2)

	resp := f.do(t, http.MethodPost, "/orders/checkout", "", 5, enums.UserRoleCustomer)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var dto internalorders.OrderDTO
	decodeData(t, resp, &dto)
	assert.Equal(t, enums.OrderStatusPending, dto.Status)
	assert.Equal(t, "7.00", dto.TotalAmount)
	assert.Len(t, dto.Items, 1)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/orders/checkout", "", 5, enums.UserRoleCustomer)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, resp))
}

func TestStatusSnapshotAccess(t *testing.T) {
	f := newFixture(t)
	order := seedPending(t, f, 5)
	path := "/orders/" + itoa(order.ID) + "/status"

	cases := []struct {
		name string
		user int64
		role enums.UserRole
		path string
		want int
	}{
		{"owner", 5, enums.UserRoleCustomer, path, http.StatusOK},
		{"staff", 99, enums.UserRoleStaff, path, http.StatusOK},
		{"stranger", 6, enums.UserRoleCustomer, path, http.StatusForbidden},
		{"missing order", 5, enums.UserRoleCustomer, "/orders/9999/status", http.StatusNotFound},
		{"bad id", 5, enums.UserRoleCustomer, "/orders/abc/status", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.do(t, http.MethodGet, tc.path, "", tc.user, tc.role)
			require.Equal(t, tc.want, resp.Code, resp.Body.String())
			if tc.want == http.StatusOK {
				var snap internalorders.StatusSnapshotDTO
				decodeData(t, resp, &snap)
				assert.Equal(t, order.ID, snap.OrderID)
				assert.Equal(t, enums.OrderStatusPending, snap.Status)
			}
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	order := seedPending(t, f, 5)
	path := "/orders/" + itoa(order.ID) + "/status"

	resp := f.do(t, http.MethodPatch, path, `{"status":"accepted"}`, 99, enums.UserRoleStaff)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var dto internalorders.OrderDTO
	decodeData(t, resp, &dto)
	assert.Equal(t, enums.OrderStatusAccepted, dto.Status)

	resp = f.do(t, http.MethodPatch, path, `{"status":"COMPLETED"}`, 99, enums.UserRoleStaff)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "STATE_CONFLICT", errorCode(t, resp))

	resp = f.do(t, http.MethodPatch, "/orders/9999/status", `{"status":"ACCEPTED"}`, 99, enums.UserRoleStaff)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = f.do(t, http.MethodPatch, path, `{"status":"BREWING"}`, 99, enums.UserRoleStaff)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = f.do(t, http.MethodPatch, path, `{}`, 99, enums.UserRoleStaff)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	assert.Equal(t, int64(2), dbtest.CountHistory(t, f.conn, order.ID))
}

func TestListAndDetail(t *testing.T) {
	f := newFixture(t)
	mine := seedPending(t, f, 5)
	seedPending(t, f, 6)

	resp := f.do(t, http.MethodGet, "/orders", "", 5, enums.UserRoleCustomer)
	require.Equal(t, http.StatusOK, resp.Code)
	var list []internalorders.OrderDTO
	decodeData(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	resp = f.do(t, http.MethodGet, "/orders/"+itoa(mine.ID), "", 5, enums.UserRoleCustomer)
	require.Equal(t, http.StatusOK, resp.Code)
	var detail internalorders.OrderDTO
	decodeData(t, resp, &detail)
	assert.Len(t, detail.StatusHistory, 1)

	resp = f.do(t, http.MethodGet, "/orders/"+itoa(mine.ID), "", 6, enums.UserRoleCustomer)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestAdminList(t *testing.T) {
	f := newFixture(t)
	seedPending(t, f, 5)
	seedPending(t, f, 6)
	dbtest.SeedOrder(t, f.conn, models.Order{UserID: 7, Status: enums.OrderStatusReadyForPickup, TotalAmount: decimal.NewFromInt(3)})

	resp := f.do(t, http.MethodGet, "/admin/orders?status=pending&limit=1", "", 99, enums.UserRoleAdmin)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var page adminListResponse
	decodeData(t, resp, &page)
	assert.Len(t, page.Orders, 1)
	assert.Equal(t, 1, page.Limit)
	assert.Equal(t, enums.OrderStatusPending, page.Orders[0].Status)

	resp = f.do(t, http.MethodGet, "/admin/orders?status=READY_FOR_PICKUP", "", 99, enums.UserRoleAdmin)
	require.Equal(t, http.StatusOK, resp.Code)
	decodeData(t, resp, &page)
	assert.Len(t, page.Orders, 1)

	for _, query := range []string{"limit=0", "limit=51", "offset=-1", "status=LOST"} {
		resp = f.do(t, http.MethodGet, "/admin/orders?"+query, "", 99, enums.UserRoleAdmin)
		assert.Equal(t, http.StatusBadRequest, resp.Code, query)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

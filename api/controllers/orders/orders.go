package orders

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brewline/brewline-backend/api/middleware"
	"github.com/brewline/brewline-backend/api/responses"
	"github.com/brewline/brewline-backend/api/validators"
	checkoutsvc "github.com/brewline/brewline-backend/internal/checkout"
	internalorders "github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	pkgerrors "github.com/brewline/brewline-backend/pkg/errors"
	"github.com/brewline/brewline-backend/pkg/logger"
)

// Reader is the slice of the ledger the order endpoints read from.
type Reader interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	GetOrderDetail(ctx context.Context, orderID int64) (*models.Order, error)
	ListOrdersForUser(ctx context.Context, userID int64) ([]models.Order, error)
	ListOrders(ctx context.Context, filter internalorders.ListFilter) ([]models.Order, error)
	LatestStatus(ctx context.Context, orderID int64) (*models.OrderStatusHistory, error)
}

// Checkout converts the caller's cart into a PENDING order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		order, err := svc.Execute(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.NewOrderDTO(order))
	}
}

// List returns the caller's own orders, newest first.
func List(reader Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}
		list, err := reader.ListOrdersForUser(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderDTOs(list))
	}
}

// Detail returns one order with items and history to its owner or staff.
func Detail(reader Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := reader.GetOrderDetail(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeViewer(r, order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderDTO(order))
	}
}

// Status returns the latest status entry for polling clients.
func Status(reader Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := reader.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeViewer(r, order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := reader.LatestStatus(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewStatusSnapshotDTO(entry))
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

// UpdateStatus applies a staff-initiated transition. Role checks run in the
// router; the caller id is recorded as the actor.
func UpdateStatus(machine internalorders.StateMachine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if machine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "state machine unavailable"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := machine.Transition(r.Context(), internalorders.TransitionInput{
			OrderID:     orderID,
			Status:      enums.OrderStatus(strings.ToUpper(strings.TrimSpace(payload.Status))),
			ActorUserID: middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderDTO(order))
	}
}

func parseOrderID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id").WithDetails(map[string]any{"orderId": raw})
	}
	return id, nil
}

func authorizeViewer(r *http.Request, order *models.Order) error {
	if middleware.RoleFromContext(r.Context()).IsStaff() {
		return nil
	}
	if order.UserID == middleware.UserIDFromContext(r.Context()) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
}

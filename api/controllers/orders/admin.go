package orders

import (
	"net/http"

	"github.com/brewline/brewline-backend/api/responses"
	"github.com/brewline/brewline-backend/api/validators"
	internalorders "github.com/brewline/brewline-backend/internal/orders"
	pkgerrors "github.com/brewline/brewline-backend/pkg/errors"
	"github.com/brewline/brewline-backend/pkg/logger"
)

// AdminList pages through all orders, optionally filtered by status.
func AdminList(reader Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", internalorders.DefaultListLimit, 1, internalorders.MaxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := validators.ParseQueryOrderStatus(r, "status")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := internalorders.ListFilter{Limit: limit, Offset: offset, Status: status}

		list, err := reader.ListOrders(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adminListResponse{
			Orders: internalorders.NewOrderDTOs(list),
			Limit:  limit,
			Offset: offset,
		})
	}
}

type adminListResponse struct {
	Orders []internalorders.OrderDTO `json:"orders"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

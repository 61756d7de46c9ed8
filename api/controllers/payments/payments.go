package payments

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brewline/brewline-backend/api/middleware"
	"github.com/brewline/brewline-backend/api/responses"
	"github.com/brewline/brewline-backend/api/validators"
	internalpayments "github.com/brewline/brewline-backend/internal/payments"
	"github.com/brewline/brewline-backend/pkg/enums"
	pkgerrors "github.com/brewline/brewline-backend/pkg/errors"
	"github.com/brewline/brewline-backend/pkg/logger"
)

type createRequest struct {
	OrderID int64 `json:"orderId" validate:"required,gt=0"`
}

type createResponse struct {
	ExternalSessionID string              `json:"externalSessionId"`
	Status            enums.PaymentStatus `json:"status"`
}

type captureRequest struct {
	OrderID           int64  `json:"orderId" validate:"required,gt=0"`
	ExternalSessionID string `json:"externalSessionId" validate:"required"`
}

type captureResponse struct {
	Status        enums.PaymentStatus `json:"status"`
	TransactionID string              `json:"transactionId,omitempty"`
	Message       string              `json:"message"`
	Retryable     bool                `json:"retryable,omitempty"`
}

// Create opens a processor session for a pending order owned by the caller.
func Create(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		var payload createRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.CreateSession(r.Context(), chi.URLParam(r, "provider"), payload.OrderID, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, createResponse{
			ExternalSessionID: session.ExternalSessionID,
			Status:            session.Status,
		})
	}
}

// Capture settles an approved session. Processor-side failures answer 200
// with status FAILED so clients can offer a retry; business-rule violations
// keep their error status.
func Capture(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		var payload captureRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CaptureSession(r.Context(), chi.URLParam(r, "provider"), payload.OrderID, payload.ExternalSessionID, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			switch pkgerrors.CodeOf(err) {
			case pkgerrors.CodeExternal, pkgerrors.CodeConsistency:
				if logg != nil {
					logg.Warn(logg.WithFields(r.Context(), map[string]any{
						"order_id":   payload.OrderID,
						"error_code": pkgerrors.CodeOf(err),
						"error":      err.Error(),
					}), "payment.capture_failed")
				}
				responses.WriteSuccess(w, captureResponse{
					Status:        enums.PaymentStatusFailed,
					TransactionID: failureTransaction(err),
					Message:       failureMessage(err),
					Retryable:     pkgerrors.IsRetryable(err),
				})
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, captureResponse{
			Status:        result.Status,
			TransactionID: result.TransactionID,
			Message:       "payment captured",
		})
	}
}

func failureMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return "payment could not be captured"
}

// failureTransaction surfaces the processor transaction of a capture that
// succeeded but could not be applied, so support can trace the refund.
func failureTransaction(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return ""
	}
	id, _ := details["transactionId"].(string)
	return id
}

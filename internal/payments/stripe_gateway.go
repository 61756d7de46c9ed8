package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	pkgstripe "github.com/brewline/brewline-backend/pkg/stripe"
)

const stripeOrderMetadataKey = "order_id"

type stripeGateway struct {
	intents pkgstripe.PaymentIntentAPI
}

// NewStripeGateway adapts Stripe PaymentIntents with manual capture.
func NewStripeGateway(intents pkgstripe.PaymentIntentAPI) Gateway {
	if intents == nil {
		return nil
	}
	return &stripeGateway{intents: intents}
}

func (g *stripeGateway) Provider() enums.PaymentProvider {
	return enums.PaymentProviderStripe
}

func (g *stripeGateway) CreateSession(ctx context.Context, order *models.Order) (*Session, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinorUnits(order.TotalAmount, order.Currency)),
		Currency:      stripe.String(strings.ToLower(order.Currency.String())),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.AddMetadata(stripeOrderMetadataKey, strconv.FormatInt(order.ID, 10))

	intent, err := g.intents.New(ctx, params)
	if err != nil {
		return nil, g.wrap("create session", err)
	}
	return &Session{ID: intent.ID, Status: stripeStatus(intent.Status)}, nil
}

func (g *stripeGateway) CaptureSession(ctx context.Context, order *models.Order, sessionID string) (*Capture, error) {
	intent, err := g.intents.Capture(ctx, sessionID, &stripe.PaymentIntentCaptureParams{})
	if err != nil {
		return nil, g.wrap("capture session", err)
	}

	capture := &Capture{
		Status:    stripeStatus(intent.Status),
		Reference: intent.Metadata[stripeOrderMetadataKey],
		Amount:    fromMinorUnits(intent.AmountReceived, order.Currency),
		Currency:  string(intent.Currency),
	}
	capture.TransactionID = intent.ID
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		capture.TransactionID = intent.LatestCharge.ID
	}
	return capture, nil
}

func (g *stripeGateway) wrap(op string, err error) error {
	gwErr := &GatewayError{Provider: g.Provider(), Op: op, Err: err}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		gwErr.StatusCode = stripeErr.HTTPStatusCode
		if isCredentialStatus(stripeErr.HTTPStatusCode) {
			gwErr.Err = fmt.Errorf("%w: %w", ErrProcessorAuth, err)
		}
	}
	return gwErr
}

// Stripe amounts are integers in the currency's smallest unit.
func toMinorUnits(amount decimal.Decimal, currency enums.Currency) int64 {
	return amount.Shift(currency.MinorUnits()).Round(0).IntPart()
}

func fromMinorUnits(amount int64, currency enums.Currency) decimal.Decimal {
	return decimal.New(amount, -currency.MinorUnits())
}

func stripeStatus(status stripe.PaymentIntentStatus) enums.PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return enums.PaymentStatusCompleted
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction:
		return enums.PaymentStatusRequiresAction
	case stripe.PaymentIntentStatusRequiresCapture, stripe.PaymentIntentStatusProcessing:
		return enums.PaymentStatusCreated
	case stripe.PaymentIntentStatusCanceled:
		return enums.PaymentStatusDeclined
	default:
		return enums.PaymentStatusFailed
	}
}

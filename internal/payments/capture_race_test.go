package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/internal/tracking"
	"github.com/brewline/brewline-backend/pkg/db/dbtest"
	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	pkgerrors "github.com/brewline/brewline-backend/pkg/errors"
	"github.com/brewline/brewline-backend/pkg/paypal"
)

// acceptedSignal closes ch the first time an order is accepted.
type acceptedSignal struct {
	once sync.Once
	ch   chan struct{}
}

func (a *acceptedSignal) Publish(_ context.Context, event tracking.StatusEvent) error {
	if event.Status == enums.OrderStatusAccepted {
		a.once.Do(func() { close(a.ch) })
	}
	return nil
}

// racingGateway lets two captures pass the unlocked guard together. The
// first succeeds; the second fails only after the first has been accepted.
type racingGateway struct {
	barrier  sync.WaitGroup
	calls    atomic.Int32
	accepted <-chan struct{}
	capture  *Capture
}

func (g *racingGateway) Provider() enums.PaymentProvider { return enums.PaymentProviderPayPal }

func (g *racingGateway) CreateSession(context.Context, *models.Order) (*Session, error) {
	return nil, errors.New("not used")
}

func (g *racingGateway) CaptureSession(ctx context.Context, _ *models.Order, _ string) (*Capture, error) {
	g.barrier.Done()
	g.barrier.Wait()
	if g.calls.Add(1) == 1 {
		return g.capture, nil
	}
	select {
	case <-g.accepted:
	case <-ctx.Done():
		return nil, &GatewayError{Provider: g.Provider(), Op: "capture session", Err: ctx.Err()}
	}
	return nil, &GatewayError{Provider: g.Provider(), Op: "capture session", StatusCode: http.StatusUnprocessableEntity, Err: errors.New("order already captured")}
}

// hookGateway runs before on every capture, then returns capture.
type hookGateway struct {
	before  func()
	capture *Capture
}

func (g *hookGateway) Provider() enums.PaymentProvider { return enums.PaymentProviderPayPal }

func (g *hookGateway) CreateSession(context.Context, *models.Order) (*Session, error) {
	return nil, errors.New("not used")
}

func (g *hookGateway) CaptureSession(context.Context, *models.Order, string) (*Capture, error) {
	g.before()
	return g.capture, nil
}

func TestConcurrentCaptureFailureDoesNotCancelPaidOrder(t *testing.T) {
	signal := &acceptedSignal{ch: make(chan struct{})}
	gw := &racingGateway{accepted: signal.ch}
	gw.barrier.Add(2)
	f := newPaymentFixtureWith(t, 5*time.Second, gw, signal)
	order := f.seedOrder(t, "11.25", "PP-1")
	gw.capture = completedCapture(order, "11.25")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CaptureSession(context.Background(), "paypal", order.ID, "PP-1", order.UserID)
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyCaptured):
			assert.Equal(t, pkgerrors.CodePayment, pkgerrors.CodeOf(err))
			rejected++
		default:
			t.Fatalf("unexpected capture error %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	stored := f.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusAccepted, stored.Status)
	require.NotNil(t, stored.PaymentCaptureID)
	assert.Equal(t, "CAP-1", *stored.PaymentCaptureID)
	require.NotNil(t, stored.PaymentStatus)
	assert.Equal(t, enums.PaymentStatusCompleted, *stored.PaymentStatus)
	assert.EqualValues(t, 2, dbtest.CountHistory(t, f.conn, order.ID))
}

func TestCaptureAfterCancelKeepsTransaction(t *testing.T) {
	gw := &hookGateway{}
	f := newPaymentFixtureWith(t, time.Second, gw, nil)
	order := f.seedOrder(t, "11.25", "PP-1")
	gw.capture = completedCapture(order, "11.25")
	gw.before = func() {
		_, err := f.machine.Transition(context.Background(), orders.TransitionInput{
			OrderID:     order.ID,
			Status:      enums.OrderStatusCanceled,
			ActorUserID: 1,
		})
		require.NoError(t, err)
	}

	_, err := f.svc.CaptureSession(context.Background(), "paypal", order.ID, "PP-1", order.UserID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConsistency, pkgerrors.CodeOf(err))
	assert.False(t, pkgerrors.IsRetryable(err))
	assert.True(t, errors.Is(err, ErrCapturedAfterClose))

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "CAP-1", details["transactionId"])
	assert.Equal(t, true, details["refundRequired"])

	stored := f.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusCanceled, stored.Status)
	require.NotNil(t, stored.PaymentCaptureID)
	assert.Equal(t, "CAP-1", *stored.PaymentCaptureID)
	require.NotNil(t, stored.PaymentStatus)
	assert.Equal(t, enums.PaymentStatusCompleted, *stored.PaymentStatus)
	assert.EqualValues(t, 2, dbtest.CountHistory(t, f.conn, order.ID))
}

func TestCaptureWithRejectedCredentialsLeavesOrder(t *testing.T) {
	var captureHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Client Authentication failed"}`))
			return
		}
		captureHits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := paypal.NewClient("id", "secret", paypal.WithBaseURL(srv.URL))
	require.NoError(t, err)
	f := newPaymentFixtureWith(t, time.Second, NewPayPalGateway(client), nil)
	order := f.seedOrder(t, "11.25", "PP-1")

	_, err = f.svc.CaptureSession(context.Background(), "paypal", order.ID, "PP-1", order.UserID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeExternal, pkgerrors.CodeOf(err))
	assert.False(t, pkgerrors.IsRetryable(err))
	assert.True(t, errors.Is(err, ErrProcessorAuth))
	assert.Zero(t, captureHits.Load())

	stored := f.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Nil(t, stored.PaymentStatus)
	assert.EqualValues(t, 1, dbtest.CountHistory(t, f.conn, order.ID))
}

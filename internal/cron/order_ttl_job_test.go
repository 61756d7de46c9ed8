package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	"github.com/brewline/brewline-backend/pkg/logger"
	"github.com/brewline/brewline-backend/pkg/metrics"
)

type stubPendingReader struct {
	orders []models.Order
	err    error
	cutoff time.Time
}

func (s *stubPendingReader) ListPendingBefore(_ context.Context, cutoff time.Time) ([]models.Order, error) {
	s.cutoff = cutoff
	return s.orders, s.err
}

// stubMachine runs the precondition against its current view of the order,
// mimicking the locked re-read the real state machine performs.
type stubMachine struct {
	current map[int64]models.Order
	fail    map[int64]error
	inputs  []orders.TransitionInput
}

func (s *stubMachine) Transition(_ context.Context, input orders.TransitionInput) (*models.Order, error) {
	s.inputs = append(s.inputs, input)
	if err := s.fail[input.OrderID]; err != nil {
		return nil, err
	}
	order := s.current[input.OrderID]
	if input.Precondition != nil {
		if err := input.Precondition(&order); err != nil {
			return nil, err
		}
	}
	order.Status = input.Status
	s.current[input.OrderID] = order
	return &order, nil
}

func newTestTTLJob(t *testing.T, reader *stubPendingReader, machine *stubMachine, now time.Time) *orderTTLJob {
	t.Helper()
	job, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:        logger.Nop(),
		PendingReader: reader,
		Machine:       machine,
		TTL:           30 * time.Minute,
		SessionTTL:    6 * time.Hour,
	})
	require.NoError(t, err)
	ttl := job.(*orderTTLJob)
	ttl.now = func() time.Time { return now }
	return ttl
}

func pendingOrder(id int64, createdAt time.Time) models.Order {
	return models.Order{ID: id, UserID: 9, Status: enums.OrderStatusPending, CreatedAt: createdAt}
}

func TestOrderTTLJobCancelsStaleOrders(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)
	reader := &stubPendingReader{orders: []models.Order{pendingOrder(1, old), pendingOrder(2, old)}}
	machine := &stubMachine{current: map[int64]models.Order{1: pendingOrder(1, old), 2: pendingOrder(2, old)}}

	job := newTestTTLJob(t, reader, machine, now)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, now.Add(-30*time.Minute), reader.cutoff)
	require.Len(t, machine.inputs, 2)
	for _, input := range machine.inputs {
		assert.Equal(t, enums.OrderStatusCanceled, input.Status)
		assert.Equal(t, SystemActorID, input.ActorUserID)
	}
	assert.Equal(t, enums.OrderStatusCanceled, machine.current[1].Status)
	assert.Equal(t, enums.OrderStatusCanceled, machine.current[2].Status)
}

func TestOrderTTLJobSkipsOrdersThatMovedOn(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)
	captureID := "CAP-1"

	captured := pendingOrder(1, old)
	captured.PaymentCaptureID = &captureID
	accepted := pendingOrder(2, old)
	accepted.Status = enums.OrderStatusAccepted

	reader := &stubPendingReader{orders: []models.Order{pendingOrder(1, old), pendingOrder(2, old)}}
	machine := &stubMachine{current: map[int64]models.Order{1: captured, 2: accepted}}

	job := newTestTTLJob(t, reader, machine, now)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, enums.OrderStatusPending, machine.current[1].Status)
	assert.Equal(t, enums.OrderStatusAccepted, machine.current[2].Status)
}

func TestOrderTTLJobCombinesFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)
	reader := &stubPendingReader{orders: []models.Order{pendingOrder(1, old), pendingOrder(2, old), pendingOrder(3, old)}}
	machine := &stubMachine{
		current: map[int64]models.Order{1: pendingOrder(1, old), 2: pendingOrder(2, old), 3: pendingOrder(3, old)},
		fail: map[int64]error{
			1: errors.New("deadlock"),
			3: errors.New("timeout"),
		},
	}

	job := newTestTTLJob(t, reader, machine, now)
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancel order 1")
	assert.Contains(t, err.Error(), "cancel order 3")
	assert.Equal(t, enums.OrderStatusCanceled, machine.current[2].Status, "one failure must not stop the rest")
}

func TestOrderTTLJobReaderFailure(t *testing.T) {
	reader := &stubPendingReader{err: errors.New("db down")}
	machine := &stubMachine{current: map[int64]models.Order{}}

	job := newTestTTLJob(t, reader, machine, time.Now())
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, machine.inputs)
}

func TestStillStaleRejectsFreshOrders(t *testing.T) {
	cutoff := time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC)
	fresh := pendingOrder(1, cutoff.Add(time.Minute))
	assert.ErrorIs(t, stillStale(cutoff, cutoff)(&fresh), errNoLongerStale)

	stale := pendingOrder(2, cutoff.Add(-time.Minute))
	assert.NoError(t, stillStale(cutoff, cutoff)(&stale))
}

func TestOrderTTLJobHoldsOpenPaymentSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)
	ancient := now.Add(-7 * time.Hour)
	session := "PP-1"
	created := enums.PaymentStatusCreated
	declined := enums.PaymentStatusDeclined

	open := pendingOrder(1, old)
	open.PaymentSessionID = &session
	open.PaymentStatus = &created
	closed := pendingOrder(2, old)
	closed.PaymentSessionID = &session
	closed.PaymentStatus = &declined
	abandoned := pendingOrder(3, ancient)
	abandoned.PaymentSessionID = &session

	reader := &stubPendingReader{orders: []models.Order{open, closed, abandoned}}
	machine := &stubMachine{current: map[int64]models.Order{1: open, 2: closed, 3: abandoned}}

	job := newTestTTLJob(t, reader, machine, now)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, enums.OrderStatusPending, machine.current[1].Status)
	assert.Equal(t, enums.OrderStatusCanceled, machine.current[2].Status)
	assert.Equal(t, enums.OrderStatusCanceled, machine.current[3].Status)
}

func TestNewOrderTTLJobSessionTTLFloor(t *testing.T) {
	job, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:        logger.Nop(),
		PendingReader: &stubPendingReader{},
		Machine:       &stubMachine{},
		TTL:           time.Hour,
		SessionTTL:    time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, job.(*orderTTLJob).sessionTTL)
}

func TestNewOrderTTLJobValidatesParams(t *testing.T) {
	_, err := NewOrderTTLJob(OrderTTLJobParams{PendingReader: &stubPendingReader{}, Machine: &stubMachine{}})
	assert.Error(t, err)
	_, err = NewOrderTTLJob(OrderTTLJobParams{Logger: logger.Nop(), Machine: &stubMachine{}})
	assert.Error(t, err)
	_, err = NewOrderTTLJob(OrderTTLJobParams{Logger: logger.Nop(), PendingReader: &stubPendingReader{}})
	assert.Error(t, err)
}

func TestOrderTTLJobReportsSweepOutcomes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)
	accepted := pendingOrder(2, old)
	accepted.Status = enums.OrderStatusAccepted

	reader := &stubPendingReader{orders: []models.Order{pendingOrder(1, old), pendingOrder(2, old), pendingOrder(3, old)}}
	machine := &stubMachine{
		current: map[int64]models.Order{1: pendingOrder(1, old), 2: accepted, 3: pendingOrder(3, old)},
		fail:    map[int64]error{3: errors.New("timeout")},
	}
	reg := prometheus.NewRegistry()
	job := newTestTTLJob(t, reader, machine, now)
	job.metrics = metrics.NewCronMetrics(reg)

	require.Error(t, job.Run(context.Background()))
	for outcome, want := range map[string]float64{
		metrics.SweepCanceled: 1,
		metrics.SweepSkipped:  1,
		metrics.SweepFailed:   1,
	} {
		got := counterValue(t, reg, "brewline_cron_orders_swept_total", map[string]string{"outcome": outcome})
		assert.Equal(t, want, got, outcome)
	}
}

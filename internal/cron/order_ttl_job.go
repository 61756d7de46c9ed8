package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	"github.com/brewline/brewline-backend/pkg/logger"
	"github.com/brewline/brewline-backend/pkg/metrics"
)

const (
	defaultPendingTTL = 30 * time.Minute
	defaultSessionTTL = 6 * time.Hour
)

// SystemActorID is recorded as the actor of transitions the scheduler makes.
const SystemActorID int64 = 0

// errNoLongerStale aborts a cancel when the order moved on after it was listed.
var errNoLongerStale = errors.New("order no longer stale")

type pendingOrderReader interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type transitioner interface {
	Transition(ctx context.Context, input orders.TransitionInput) (*models.Order, error)
}

// OrderTTLJobParams configure the stale order scheduler.
type OrderTTLJobParams struct {
	Logger        *logger.Logger
	Metrics       *metrics.CronMetrics
	PendingReader pendingOrderReader
	Machine       transitioner
	TTL           time.Duration

	// SessionTTL is how long an order with an open payment session is kept.
	// Never shorter than TTL.
	SessionTTL time.Duration
}

// NewOrderTTLJob builds the job that cancels orders left PENDING past the TTL.
// Cancels go through the state machine so history and broadcasts stay in step.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.PendingReader == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Machine == nil {
		return nil, fmt.Errorf("state machine required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	sessionTTL := params.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	if sessionTTL < ttl {
		sessionTTL = ttl
	}
	return &orderTTLJob{
		logg:          params.Logger,
		metrics:       params.Metrics,
		pendingReader: params.PendingReader,
		machine:       params.Machine,
		ttl:           ttl,
		sessionTTL:    sessionTTL,
		now:           time.Now,
	}, nil
}

type orderTTLJob struct {
	logg          *logger.Logger
	metrics       *metrics.CronMetrics
	pendingReader pendingOrderReader
	machine       transitioner
	ttl           time.Duration
	sessionTTL    time.Duration
	now           func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.ttl)
	sessionCutoff := now.Add(-j.sessionTTL)
	stale, err := j.pendingReader.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs error
	canceled, skipped := 0, 0
	for _, order := range stale {
		_, err := j.machine.Transition(ctx, orders.TransitionInput{
			OrderID:      order.ID,
			Status:       enums.OrderStatusCanceled,
			ActorUserID:  SystemActorID,
			Precondition: stillStale(cutoff, sessionCutoff),
		})
		switch {
		case err == nil:
			canceled++
		case errors.Is(err, errNoLongerStale):
			skipped++
		default:
			errs = multierr.Append(errs, fmt.Errorf("cancel order %d: %w", order.ID, err))
		}
	}

	failed := len(multierr.Errors(errs))
	j.metrics.AddSwept(metrics.SweepCanceled, canceled)
	j.metrics.AddSwept(metrics.SweepSkipped, skipped)
	j.metrics.AddSwept(metrics.SweepFailed, failed)

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"found":    len(stale),
		"canceled": canceled,
		"skipped":  skipped,
		"failed":   failed,
	}), "stale pending orders processed")
	return errs
}

// stillStale re-checks the locked row so a capture or staff action that won
// the race is left alone. Orders whose payment session may still complete
// are held until sessionCutoff.
func stillStale(cutoff, sessionCutoff time.Time) func(order *models.Order) error {
	return func(order *models.Order) error {
		if order.Status != enums.OrderStatusPending || order.IsCaptured() || order.CreatedAt.After(cutoff) {
			return errNoLongerStale
		}
		if hasOpenSession(order) && order.CreatedAt.After(sessionCutoff) {
			return errNoLongerStale
		}
		return nil
	}
}

func hasOpenSession(order *models.Order) bool {
	if order.PaymentSessionID == nil || *order.PaymentSessionID == "" {
		return false
	}
	return order.PaymentStatus == nil || order.PaymentStatus.IsOpen()
}

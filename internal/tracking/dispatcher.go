package tracking

import (
	"context"
	"errors"
	"sync"

	"github.com/brewline/brewline-backend/pkg/logger"
	"github.com/brewline/brewline-backend/pkg/metrics"
)

// ErrQueueFull is returned when an event cannot be queued without blocking.
var ErrQueueFull = errors.New("status dispatch queue full")

const defaultQueueSize = 1024

// Dispatcher decouples committed transitions from channel I/O. Events are
// delivered in publish order by a single consumer goroutine.
type Dispatcher struct {
	registry *Registry
	queue    chan StatusEvent
	logg     *logger.Logger
	metrics  *metrics.TrackingMetrics

	startOnce sync.Once
	done      chan struct{}
}

// NewDispatcher builds a dispatcher with a bounded queue.
func NewDispatcher(registry *Registry, queueSize int, logg *logger.Logger, m *metrics.TrackingMetrics) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		registry: registry,
		queue:    make(chan StatusEvent, queueSize),
		logg:     logg,
		metrics:  m,
		done:     make(chan struct{}),
	}
}

// Publish enqueues event without blocking.
func (d *Dispatcher) Publish(ctx context.Context, event StatusEvent) error {
	select {
	case d.queue <- event:
		return nil
	default:
		d.metrics.IncDropped()
		if d.logg != nil {
			d.logg.Warn(d.logg.WithFields(ctx, map[string]any{
				"order_id": event.OrderID,
				"status":   event.Status,
			}), "status dispatch queue full; dropping event")
		}
		return ErrQueueFull
	}
}

// Run consumes the queue until ctx is canceled. Events still queued at
// cancellation are flushed before returning.
func (d *Dispatcher) Run(ctx context.Context) {
	started := false
	d.startOnce.Do(func() { started = true })
	if !started {
		return
	}
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return
		case event := <-d.queue:
			d.deliver(ctx, event)
		}
	}
}

// Done is closed once Run returns.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event StatusEvent) {
	if _, err := d.registry.BroadcastEvent(ctx, event); err != nil && d.logg != nil {
		d.logg.Error(d.logg.WithOrderID(ctx, event.OrderID), "encode status event", err)
	}
}

// Package tracking fans committed order status changes out to live
// subscriber channels.
package tracking

import (
	"context"
	"sync"

	"github.com/brewline/brewline-backend/pkg/logger"
	"github.com/brewline/brewline-backend/pkg/metrics"
)

// Channel is one live subscriber connection. Send must return promptly; an
// error marks the channel dead.
type Channel interface {
	Send(ctx context.Context, payload []byte) error
}

// Registry maps order ids to the channels watching them.
type Registry struct {
	mu      sync.RWMutex
	subs    map[int64]map[Channel]struct{}
	logg    *logger.Logger
	metrics *metrics.TrackingMetrics
}

// NewRegistry builds an empty registry. Both arguments may be nil.
func NewRegistry(logg *logger.Logger, m *metrics.TrackingMetrics) *Registry {
	return &Registry{
		subs:    make(map[int64]map[Channel]struct{}),
		logg:    logg,
		metrics: m,
	}
}

// Subscribe adds ch to the set for orderID. Adding the same channel twice is
// a no-op.
func (r *Registry) Subscribe(orderID int64, ch Channel) {
	if ch == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[orderID]
	if !ok {
		set = make(map[Channel]struct{})
		r.subs[orderID] = set
	}
	if _, exists := set[ch]; exists {
		return
	}
	set[ch] = struct{}{}
	r.metrics.IncSubscriptions()
}

// Unsubscribe removes ch. Unknown channels or orders are ignored.
func (r *Registry) Unsubscribe(orderID int64, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(orderID, ch)
}

func (r *Registry) removeLocked(orderID int64, ch Channel) bool {
	set, ok := r.subs[orderID]
	if !ok {
		return false
	}
	if _, exists := set[ch]; !exists {
		return false
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(r.subs, orderID)
	}
	r.metrics.DecSubscriptions()
	return true
}

// Broadcast pushes payload to every channel subscribed to orderID. Sends run
// outside the lock on a snapshot; channels that fail are pruned afterwards.
// It returns the number of successful deliveries.
func (r *Registry) Broadcast(ctx context.Context, orderID int64, payload []byte) int {
	r.mu.RLock()
	set := r.subs[orderID]
	snapshot := make([]Channel, 0, len(set))
	for ch := range set {
		snapshot = append(snapshot, ch)
	}
	r.mu.RUnlock()

	if len(snapshot) == 0 {
		return 0
	}

	var dead []Channel
	delivered := 0
	for _, ch := range snapshot {
		if err := ch.Send(ctx, payload); err != nil {
			dead = append(dead, ch)
			continue
		}
		delivered++
	}
	r.metrics.AddDelivered(delivered)

	if len(dead) > 0 {
		pruned := 0
		r.mu.Lock()
		for _, ch := range dead {
			if r.removeLocked(orderID, ch) {
				pruned++
			}
		}
		r.mu.Unlock()
		r.metrics.AddPruned(pruned)
		if r.logg != nil && pruned > 0 {
			r.logg.Debug(r.logg.WithFields(ctx, map[string]any{
				"order_id": orderID,
				"pruned":   pruned,
			}), "pruned dead status channels")
		}
	}
	return delivered
}

// BroadcastEvent encodes event and broadcasts it to the event's order.
func (r *Registry) BroadcastEvent(ctx context.Context, event StatusEvent) (int, error) {
	payload, err := event.Encode()
	if err != nil {
		return 0, err
	}
	return r.Broadcast(ctx, event.OrderID, payload), nil
}

// Count returns how many channels are subscribed to orderID.
func (r *Registry) Count(orderID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[orderID])
}

// Orders returns how many orders have at least one subscriber.
func (r *Registry) Orders() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

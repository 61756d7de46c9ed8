package tracking

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/brewline/brewline-backend/pkg/logger"
)

// Publisher is the local sink that relayed events are handed to.
type Publisher interface {
	Publish(ctx context.Context, event StatusEvent) error
}

// PubSub is the Redis surface used by the relay.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (*goredis.PubSub, error)
}

// RedisRelay fans events out to every API instance through a Redis channel.
// Each instance subscribes and feeds its own dispatcher, so a client
// connected to any instance sees every transition. Ordering holds per
// publishing instance only.
type RedisRelay struct {
	pubsub  PubSub
	channel string
	local   Publisher
	logg    *logger.Logger
}

// NewRedisRelay builds a relay bound to channel.
func NewRedisRelay(pubsub PubSub, channel string, local Publisher, logg *logger.Logger) (*RedisRelay, error) {
	if pubsub == nil {
		return nil, fmt.Errorf("redis pubsub required")
	}
	if channel == "" {
		return nil, fmt.Errorf("relay channel required")
	}
	if local == nil {
		return nil, fmt.Errorf("local publisher required")
	}
	return &RedisRelay{pubsub: pubsub, channel: channel, local: local, logg: logg}, nil
}

// Publish sends event to the shared channel. When Redis is unreachable the
// event is delivered locally so same-instance subscribers still see it.
func (r *RedisRelay) Publish(ctx context.Context, event StatusEvent) error {
	payload, err := event.Encode()
	if err != nil {
		return err
	}
	if err := r.pubsub.Publish(ctx, r.channel, payload); err != nil {
		if r.logg != nil {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
				"order_id": event.OrderID,
				"error":    err.Error(),
			}), "redis relay publish failed; delivering locally")
		}
		return r.local.Publish(ctx, event)
	}
	return nil
}

// Run subscribes to the channel and forwards messages until ctx ends.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub, err := r.pubsub.Subscribe(ctx, r.channel)
	if err != nil {
		return err
	}
	defer sub.Close()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.Forward(ctx, []byte(msg.Payload))
		}
	}
}

// Forward decodes one relayed payload and hands it to the local publisher.
func (r *RedisRelay) Forward(ctx context.Context, payload []byte) {
	event, err := DecodeStatusEvent(payload)
	if err != nil {
		if r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "discarding malformed relayed status event")
		}
		return
	}
	_ = r.local.Publish(ctx, event)
}

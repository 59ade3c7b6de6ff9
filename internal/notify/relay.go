package notify

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel shared by all instances.
const DefaultChannel = "rewards:events"

// RedisRelay fans events out to every instance through Redis pub/sub. Each
// instance publishes to the channel and delivers what it receives to its
// local Hub, so observers see outcomes produced by any instance.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
}

// NewRedisRelay creates a relay delivering into hub.
func NewRedisRelay(rdb *redis.Client, channel string, hub *Hub) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{rdb: rdb, channel: channel, hub: hub}
}

// Publish sends ev to every instance. Falls back to local delivery if Redis
// is unreachable.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) {
	data, err := jsonEvent(ev)
	if err != nil {
		return
	}
	// Detach from the request so a finished request does not cancel delivery.
	if err := r.rdb.Publish(context.WithoutCancel(ctx), r.channel, data).Err(); err != nil {
		slog.Warn("redis publish failed, delivering locally", "err", err)
		r.hub.deliver(data)
	}
}

// Run subscribes to the channel and forwards messages to the local hub
// until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	slog.Info("redis relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.hub.deliver([]byte(msg.Payload))
		}
	}
}

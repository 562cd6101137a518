package hub

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/gateway-sim/internal/metrics"
)

// Mirror receives a copy of every encoded broadcast, matched or not.
// Implementations must not block.
type Mirror interface {
	Mirror(hub string, payload []byte)
}

// publisher is the subset of *redis.Client the mirror needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type mirrored struct {
	channel string
	payload []byte
}

// RedisMirror republishes hub events on Redis pub/sub channels named
// "<prefix>:<hub>" so external tools can tap the event stream. Events are
// queued and published by Run; a full queue drops the event.
type RedisMirror struct {
	client publisher
	prefix string
	queue  chan mirrored
}

// NewRedisMirror creates a mirror publishing through client, typically a
// *redis.Client.
func NewRedisMirror(client publisher, prefix string) *RedisMirror {
	return &RedisMirror{
		client: client,
		prefix: prefix,
		queue:  make(chan mirrored, 1024),
	}
}

func (m *RedisMirror) Mirror(hub string, payload []byte) {
	select {
	case m.queue <- mirrored{channel: m.prefix + ":" + hub, payload: payload}:
	default:
		metrics.HubMessages.WithLabelValues(hub, "mirror", "dropped").Inc()
	}
}

// Run publishes queued events until ctx is done. Must be called in a
// goroutine.
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.queue:
			if err := m.client.Publish(ctx, msg.channel, msg.payload).Err(); err != nil {
				slog.Error("redis mirror publish failed", "channel", msg.channel, "err", err)
			}
		}
	}
}

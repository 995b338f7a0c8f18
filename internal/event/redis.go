package event

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisChannel carries every envelope between instances
const RedisChannel = "delivertalk:events"

// RedisTransport publishes envelopes on a single Redis Pub/Sub channel.
// Each instance's hub subscribes and routes by Envelope.Channel to local sockets.
type RedisTransport struct {
	rdb     *redis.Client
	channel string
}

func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{rdb: rdb, channel: RedisChannel}
}

func (t *RedisTransport) Publish(ctx context.Context, _ string, envelope []byte) error {
	return t.rdb.Publish(ctx, t.channel, envelope).Err()
}

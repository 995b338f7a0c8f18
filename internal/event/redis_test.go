package event_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTransport_PublishesEnvelopeOnSharedChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, event.RedisChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	d := event.NewDispatcher(event.NewRedisTransport(rdb), event.DefaultBreakerConfig())
	convID := uuid.New()
	require.NoError(t, d.Publish(ctx, event.Event{
		Name:     event.StopTyping,
		Payload:  map[string]string{"conversation_id": convID.String()},
		Audience: event.Audience{Conversations: []uuid.UUID{convID}},
	}))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, `"channel":"chat.`+convID.String()+`"`)
		assert.Contains(t, msg.Payload, `"event":"stop-typing"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received from redis")
	}
}

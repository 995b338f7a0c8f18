package event_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/event/eventtest"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitWithWriter("test", "disabled", io.Discard)
}

func TestPublish_WritesOneEnvelopePerChannel(t *testing.T) {
	rec := &eventtest.Recorder{}
	d := event.NewDispatcher(rec, event.DefaultBreakerConfig())
	convID := uuid.New()
	userID := uuid.New()

	err := d.Publish(context.Background(), event.Event{
		Name:     event.MessageRead,
		Payload:  map[string]string{"hello": "world"},
		Audience: event.Audience{Conversations: []uuid.UUID{convID}, Users: []uuid.UUID{userID}},
	})
	require.NoError(t, err)

	all := rec.All()
	require.Len(t, all, 2)
	assert.Equal(t, event.ChatChannel(convID), all[0].Channel)
	assert.Equal(t, event.UserChannel(userID), all[1].Channel)
	for _, env := range all {
		assert.Equal(t, event.MessageRead, env.Event)
		assert.JSONEq(t, `{"hello":"world"}`, string(env.Data))
	}
}

func TestPublish_FailureOnOneChannelDoesNotSkipOthers(t *testing.T) {
	bad := uuid.New()
	good := uuid.New()
	rec := &eventtest.Recorder{Fail: func(ch string) error {
		if ch == event.ChatChannel(bad) {
			return errors.New("connection refused")
		}
		return nil
	}}
	d := event.NewDispatcher(rec, event.DefaultBreakerConfig())

	err := d.Publish(context.Background(), event.Event{
		Name:     event.UserPresence,
		Payload:  struct{}{},
		Audience: event.Audience{Conversations: []uuid.UUID{bad, good}},
	})

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindBroadcast))
	assert.Len(t, rec.OnChannel(event.ChatChannel(good)), 1)
}

func TestPublish_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	rec := &eventtest.Recorder{Fail: func(string) error {
		calls++
		return errors.New("down")
	}}
	d := event.NewDispatcher(rec, event.BreakerConfig{
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		PublishTimeout:   time.Second,
	})

	evt := event.Event{Name: event.Typing, Payload: struct{}{}, Audience: event.Audience{Users: []uuid.UUID{uuid.New()}}}
	for i := 0; i < 5; i++ {
		_ = d.Publish(context.Background(), evt)
	}

	assert.Equal(t, 2, calls, "open breaker must short-circuit the transport")
}

func TestDispatch_SwallowsErrors(t *testing.T) {
	rec := &eventtest.Recorder{Fail: func(string) error { return errors.New("down") }}
	d := event.NewDispatcher(rec, event.DefaultBreakerConfig())

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), event.Event{
			Name:     event.MessageSent,
			Payload:  struct{}{},
			Audience: event.Audience{Users: []uuid.UUID{uuid.New()}},
		})
	})
}

func TestDispatch_NilDispatcherIsNoop(t *testing.T) {
	var d *event.Dispatcher
	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), event.Event{Name: event.MessageSent})
	})
}

func TestPublish_CancelledRequestContextStillPublishes(t *testing.T) {
	rec := &eventtest.Recorder{}
	d := event.NewDispatcher(rec, event.DefaultBreakerConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Publish(ctx, event.Event{
		Name:     event.MessageSent,
		Payload:  struct{}{},
		Audience: event.Audience{Fleet: true},
	})

	require.NoError(t, err)
	assert.Len(t, rec.All(), 1)
}

func TestFanout_AttemptsEveryTransport(t *testing.T) {
	first := &eventtest.Recorder{Fail: func(string) error { return errors.New("down") }}
	second := &eventtest.Recorder{}

	err := event.Fanout{first, second}.Publish(context.Background(), "admin.deliveries", []byte(`{"channel":"admin.deliveries","event":"x","data":{}}`))

	assert.Error(t, err)
	assert.Len(t, second.All(), 1)
}

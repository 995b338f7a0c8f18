package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/metrics"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Transport publishes one encoded envelope to one channel
type Transport interface {
	Publish(ctx context.Context, channel string, envelope []byte) error
}

// BreakerConfig tunes the circuit breaker guarding the transport
type BreakerConfig struct {
	FailureThreshold uint32        // consecutive failures before opening
	OpenTimeout      time.Duration // time spent open before a half-open probe
	PublishTimeout   time.Duration // per-channel publish deadline
}

// DefaultBreakerConfig returns conservative defaults
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
		PublishTimeout:   2 * time.Second,
	}
}

// Dispatcher fans an event out to every channel of its audience
type Dispatcher struct {
	transport Transport
	breaker   *gobreaker.CircuitBreaker[struct{}]
	timeout   time.Duration
}

// NewDispatcher wraps transport with a circuit breaker
func NewDispatcher(transport Transport, cfg BreakerConfig) *Dispatcher {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultBreakerConfig().PublishTimeout
	}

	settings := gobreaker.Settings{
		Name:    "event-publish",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("event transport breaker state changed")
		},
	}

	return &Dispatcher{
		transport: transport,
		breaker:   gobreaker.NewCircuitBreaker[struct{}](settings),
		timeout:   cfg.PublishTimeout,
	}
}

// Publish sends e to all its channels and returns the joined per-channel failures.
// Every channel is attempted even when an earlier one fails.
func (d *Dispatcher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		metrics.EventsFailed.WithLabelValues(e.Name, "encode").Inc()
		return fmt.Errorf("encode %s payload: %w", e.Name, err)
	}

	// Persistence already committed; a cancelled request must not drop the notification.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for _, ch := range Channels(e) {
		frame, err := json.Marshal(Envelope{Channel: ch, Event: e.Name, Data: data})
		if err != nil {
			errs = append(errs, apperror.Broadcast(ch, err))
			continue
		}

		_, err = d.breaker.Execute(func() (struct{}, error) {
			pubCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			return struct{}{}, d.transport.Publish(pubCtx, ch, frame)
		})
		if err != nil {
			reason := "transport"
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				reason = "circuit_open"
			}
			metrics.EventsFailed.WithLabelValues(e.Name, reason).Inc()
			errs = append(errs, apperror.Broadcast(ch, err))
			continue
		}
		metrics.EventsPublished.WithLabelValues(e.Name).Inc()
	}
	return errors.Join(errs...)
}

// Dispatch publishes e and logs failures. It never fails the caller:
// the durable write already happened and notification is best-effort.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	if d == nil {
		return
	}
	if err := d.Publish(ctx, e); err != nil {
		logger.Warn().Err(err).Str("event", e.Name).Msg("broadcast failed")
	}
}

package event

import (
	"context"
	"strings"
	"time"

	k "github.com/segmentio/kafka-go"
)

// KafkaTransport mirrors envelopes to a Kafka topic keyed by channel,
// so downstream consumers (analytics, push workers) see the same stream.
type KafkaTransport struct {
	w *k.Writer
}

func NewKafkaTransport(brokers, topic string) *KafkaTransport {
	w := &k.Writer{
		Addr:         k.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &k.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: k.RequireOne,
		Async:        true,
	}
	return &KafkaTransport{w: w}
}

func (t *KafkaTransport) Close() error { return t.w.Close() }

func (t *KafkaTransport) Publish(ctx context.Context, channel string, envelope []byte) error {
	return t.w.WriteMessages(ctx, k.Message{
		Key:   []byte(channel),
		Value: envelope,
		Time:  time.Now(),
	})
}

// Package kafka publishes stored events to a Kafka topic using
// github.com/segmentio/kafka-go. Messages are keyed by stream ID so a
// single stream's events land on one partition, preserving their order.
package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	orderflow "github.com/orderflow-io/orderflow"
)

// Publisher writes events to a single Kafka topic.
type Publisher struct {
	writer *kafkago.Writer
}

// Option configures a Publisher.
type Option func(*kafkago.Writer)

// WithBalancer sets the message balancer (partitioner).
func WithBalancer(balancer kafkago.Balancer) Option {
	return func(w *kafkago.Writer) {
		w.Balancer = balancer
	}
}

// WithBatchTimeout sets the batch timeout for the writer.
func WithBatchTimeout(d time.Duration) Option {
	return func(w *kafkago.Writer) {
		w.BatchTimeout = d
	}
}

// WithRequiredAcks sets the acknowledgement level.
func WithRequiredAcks(acks kafkago.RequiredAcks) Option {
	return func(w *kafkago.Writer) {
		w.RequiredAcks = acks
	}
}

// New creates a Publisher writing to the given topic.
func New(brokers []string, topic string, opts ...Option) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return &Publisher{writer: w}
}

// Publish writes one event. The event payload is the message value and
// the event's identity travels in message headers.
func (p *Publisher) Publish(ctx context.Context, event orderflow.StoredEvent) error {
	msg := kafkago.Message{
		Key:   []byte(event.StreamID),
		Value: event.Data,
		Headers: []kafkago.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "stream_id", Value: []byte(event.StreamID)},
			{Key: "version", Value: []byte(strconv.FormatInt(event.Version, 10))},
			{Key: "global_position", Value: []byte(strconv.FormatUint(event.GlobalPosition, 10))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: failed to write to topic %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

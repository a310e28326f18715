package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/noah-isme/novahub/internal/obs"
)

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards events to a Kafka topic keyed by aggregate id so
// events of one order land on the same partition.
type KafkaPublisher struct {
	Writer  MessageWriter
	Timeout time.Duration
}

// NewKafkaWriter builds a synchronous writer that waits for all replicas.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// Notify implements Notifier.
func (p *KafkaPublisher) Notify(ctx context.Context, ev Event) error {
	if p == nil || p.Writer == nil {
		return errors.New("kafka publisher not configured")
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.AggregateID),
		Value: ev.Payload,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(ev.ID)},
			{Key: "topic", Value: []byte(ev.Topic)},
		},
	})
	if err != nil {
		obs.ObserveEventPublish(ev.Topic, "error")
		return fmt.Errorf("publish %s: %w", ev.ID, err)
	}
	obs.ObserveEventPublish(ev.Topic, "ok")
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.Writer == nil {
		return nil
	}
	return p.Writer.Close()
}

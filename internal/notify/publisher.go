package notify

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/polkiloo/payouts/internal/domain/model"
)

// EventPublisher ships outbox events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, events []model.OutboxEvent) error
}

// LogPublisher is used when no broker is configured; events are only marked published.
type LogPublisher struct{}

func (LogPublisher) Publish(context.Context, []model.OutboxEvent) error { return nil }

// KafkaPublisher writes events keyed by aggregate id so one aggregate stays ordered.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []model.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		msgs[i] = kafka.Message{
			Key:   []byte(e.AggregateID),
			Value: e.Payload,
			Time:  e.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(e.ID.String())},
				{Key: "event_type", Value: []byte(e.Type)},
				{Key: "aggregate", Value: []byte(e.Aggregate)},
			},
		}
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish events: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

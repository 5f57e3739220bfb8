// Package events publishes domain events to Kafka or to the log.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
)

// DefaultTopic receives every event type without a mapping.
const DefaultTopic = "socialrelay.events"

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ driven.EventPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes events as JSON messages keyed by user id, so events
// for one user stay ordered within a partition.
type KafkaPublisher struct {
	writer       messageWriter
	topic        string
	topicByEvent map[domain.EventType]string
}

// NewKafkaPublisher creates a publisher for the given brokers. topicByEvent
// overrides the topic per event type; unmapped types go to topic.
func NewKafkaPublisher(
	brokers []string, topic string, topicByEvent map[domain.EventType]string,
) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
		},
		topic:        topic,
		topicByEvent: topicByEvent,
	}, nil
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	topic := p.topic
	if mapped, ok := p.topicByEvent[event.Type]; ok && mapped != "" {
		topic = mapped
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.UserID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("writing %s event: %w", event.Type, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

package outbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
)

const eventTypeHeader = "event_type"

type Publisher interface {
	Publish(ctx context.Context, messages []domain.OutboxMessage) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

// ParseBrokers splits a comma separated broker list and drops empty entries.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewKafkaPublisher writes to topic keyed by order id, so events of one order stay in one partition.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers: %w", domain.ErrInvalidInput)
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is empty: %w", domain.ErrInvalidInput)
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
			ReadTimeout:            10 * time.Second,
		},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, messages []domain.OutboxMessage) error {
	if len(messages) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, kafka.Message{
			Key:   []byte(m.Key),
			Value: m.Payload,
			Time:  m.CreatedAt.UTC(),
			Headers: []kafka.Header{
				{Key: eventTypeHeader, Value: []byte(m.EventType)},
				{Key: "event_id", Value: []byte(m.EventID.String())},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("writer.WriteMessages: %w", err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

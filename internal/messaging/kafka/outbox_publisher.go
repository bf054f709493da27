package kafka

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// TopicPublisher публикует outbox-сообщения в один Kafka topic.
type TopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт publisher для topic; пустой topic означает TopicOrderEvents.
func NewOutboxPublisher(producer *Producer, topic string) *TopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &TopicPublisher{producer: producer, topic: topic}
}

// Topic возвращает целевой topic.
func (p *TopicPublisher) Topic() string {
	return p.topic
}

// Publish отправляет Envelope с ключом по id агрегата, чтобы события одного заказа шли в одну партицию.
func (p *TopicPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	envelope := NewEnvelope(msg)
	return p.producer.SendJSON(ctx, p.topic, envelope.Key(), envelope, map[string]string{
		HeaderEventType: msg.EventType,
		HeaderOutboxID:  msg.ID,
	})
}

var _ domain.OutboxPublisher = (*TopicPublisher)(nil)

package kafka

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Topics.
const (
	TopicOrderEvents     = "shop.order.events"
	TopicDeadLetterQueue = "shop.order.events.dlq"
)

// Заголовки сообщений.
const (
	HeaderEventType = "x-event-type"
	HeaderOutboxID  = "x-outbox-id"
	HeaderReplayed  = "x-replayed-from"
)

// Envelope: формат сообщения в топике событий.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope оборачивает outbox-сообщение. Невалидный JSON в payload заменяется на null.
func NewEnvelope(msg domain.OutboxMessage) Envelope {
	payload := json.RawMessage("null")
	if len(msg.Payload) > 0 && json.Valid(msg.Payload) {
		payload = msg.Payload
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		PublishedAt:   time.Now().UTC(),
	}
}

// Key возвращает ключ партиционирования: id агрегата, иначе id сообщения.
func (e Envelope) Key() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// deadLetter: тело DLQ-сообщения, которое пишет outbox worker.
type deadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
}

// OrderCreatedItem: позиция в событии order.created.
type OrderCreatedItem struct {
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Quantity  int64  `json:"quantity"`
}

// OrderCreated: payload события order.created.
type OrderCreated struct {
	OrderID    string             `json:"order_id"`
	CustomerID string             `json:"customer_id"`
	Items      []OrderCreatedItem `json:"items"`
	Total      string             `json:"total"`
	CreatedAt  time.Time          `json:"created_at"`
}

// NewOrderCreated строит payload из оформленного заказа. Денежные суммы передаются строками.
func NewOrderCreated(order domain.Order) OrderCreated {
	items := make([]OrderCreatedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderCreatedItem{
			ProductID: item.ProductID,
			Price:     item.Price.StringFixed(domain.PriceScale),
			Quantity:  item.Quantity,
		})
	}
	return OrderCreated{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Items:      items,
		Total:      order.Total().StringFixed(domain.PriceScale),
		CreatedAt:  order.CreatedAt.UTC(),
	}
}

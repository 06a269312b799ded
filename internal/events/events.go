// Package events publishes order lifecycle events for downstream consumers
// (kitchen display, delivery dispatch).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/money"
)

// OrderStatusTopic carries one message per order status change, keyed by order id.
const OrderStatusTopic = "orders.status"

// OrderEvent is the message body published on OrderStatusTopic.
type OrderEvent struct {
	OrderID         uuid.UUID              `json:"order_id"`
	OrderNumber     string                 `json:"order_number"`
	Status          models.OrderStatus     `json:"status"`
	PreviousStatus  models.OrderStatus     `json:"previous_status,omitempty"`
	FulfillmentType models.FulfillmentType `json:"fulfillment_type"`
	FulfillmentDate string                 `json:"fulfillment_date"`
	TimeSlotID      *uuid.UUID             `json:"time_slot_id,omitempty"`
	Total           money.Cents            `json:"total"`
	OccurredAt      time.Time              `json:"occurred_at"`
}

// NewOrderEvent builds the event for order having moved from previous to its current status.
func NewOrderEvent(order models.Order, previous models.OrderStatus, at time.Time) OrderEvent {
	return OrderEvent{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		PreviousStatus:  previous,
		FulfillmentType: order.FulfillmentType,
		FulfillmentDate: order.FulfillmentDate,
		TimeSlotID:      order.TimeSlotID,
		Total:           order.Total,
		OccurredAt:      at,
	}
}

// Publisher sends order events.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// NewPublisher returns a Kafka publisher, or a no-op publisher when no brokers are configured.
func NewPublisher(brokers []string) Publisher {
	if len(brokers) == 0 {
		log.Println("[Events] KAFKA_BROKERS not set, order events are disabled")
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, OrderStatusTopic)
}

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafkaGo.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkaGo.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(event.OrderID.String()),
		Value: payload,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

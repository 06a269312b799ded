package services

import (
	"context"
	"log"
	"time"

	"github.com/example/crumb/internal/events"
	"github.com/example/crumb/internal/models"
)

const notifyTimeout = 15 * time.Second

// Notifier fans order news out to staff chat, customer email and the event
// stream. Every send runs in the background and only logs failures.
type Notifier struct {
	telegram  *TelegramService
	email     *EmailService
	publisher events.Publisher
	run       func(func())
	now       func() time.Time
}

func NewNotifier(telegram *TelegramService, email *EmailService, publisher events.Publisher) *Notifier {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Notifier{
		telegram:  telegram,
		email:     email,
		publisher: publisher,
		run:       func(f func()) { go f() },
		now:       time.Now,
	}
}

// OrderReceived alerts staff about a new order.
func (n *Notifier) OrderReceived(order models.Order) {
	n.run(func() {
		if n.telegram != nil {
			if err := n.telegram.NotifyNewOrder(order); err != nil {
				log.Printf("[Notify] Telegram alert for order %s failed: %v", order.OrderNumber, err)
			}
		}
		n.publish(order, "")
	})
}

// StatusChanged emails the customer when the new status warrants it, alerts
// staff and publishes the change.
func (n *Notifier) StatusChanged(order models.Order, from models.OrderStatus) {
	n.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if subject, body, ok := StatusEmail(order); ok && n.email != nil && order.ContactEmail != "" {
			if err := n.email.Send(ctx, order.ContactEmail, subject, body); err != nil {
				log.Printf("[Notify] email for order %s (%s) failed: %v", order.OrderNumber, order.Status, err)
			}
		}
		if n.telegram != nil {
			if err := n.telegram.NotifyStatusChange(order, from); err != nil {
				log.Printf("[Notify] Telegram status for order %s failed: %v", order.OrderNumber, err)
			}
		}
		n.publish(order, from)
	})
}

func (n *Notifier) publish(order models.Order, from models.OrderStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := n.publisher.Publish(ctx, events.NewOrderEvent(order, from, n.now())); err != nil {
		log.Printf("[Notify] publish event for order %s failed: %v", order.OrderNumber, err)
	}
}

package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/services"
)

// WebhookParser verifies and decodes payment provider callbacks.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*services.PaymentEvent, error)
}

// PaymentHandler receives payment provider webhooks.
type PaymentHandler struct {
	parser WebhookParser
	status *services.OrderStatusService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(parser WebhookParser, status *services.OrderStatusService) *PaymentHandler {
	return &PaymentHandler{parser: parser, status: status}
}

// Webhook applies a signed payment event to its order. Unknown orders are
// acknowledged so the provider stops retrying.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	event, err := h.parser.ParseWebhook(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, services.ErrPaymentsNotConfigured) {
			return err
		}
		log.Printf("[Payments] rejected webhook: %v", err)
		return fiber.NewError(fiber.StatusBadRequest, "invalid webhook")
	}

	order, err := h.status.ApplyPayment(c.UserContext(), *event)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Payments] event %s references unknown order %s", event.EventID, event.OrderID)
			return c.JSON(fiber.Map{"success": true})
		}
		return err
	}

	if order != nil {
		log.Printf("[Payments] event %s (%s) applied, order %s is %s", event.EventID, event.Kind, order.OrderNumber, order.Status)
	}
	return c.JSON(fiber.Map{"success": true})
}

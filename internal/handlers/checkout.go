package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/crumb/internal/middleware"
	"github.com/example/crumb/internal/services"
)

// CheckoutHandler turns cart submissions into orders.
type CheckoutHandler struct {
	checkout *services.CheckoutService
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(checkout *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// Submit places an order for a guest or the signed-in user and returns the
// payment redirect. Failures are rendered by ErrorHandler with their kind.
func (h *CheckoutHandler) Submit(c *fiber.Ctx) error {
	var in services.CheckoutInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	in.User = middleware.CurrentUser(c)

	result, err := h.checkout.Submit(c.UserContext(), in)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

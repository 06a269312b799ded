package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/middleware"
	"github.com/example/crumb/internal/repository"
	"github.com/example/crumb/internal/utils"
)

// OrderHandler serves a signed-in customer's order history.
type OrderHandler struct {
	orders *repository.OrderRepository
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *repository.OrderRepository) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// ListOrders returns orders for authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.ListByUser(c.UserContext(), user.ID, c.Query("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns a single order, with its status history, for the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.FindForUser(c.UserContext(), id, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/middleware"
	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/repository"
	"github.com/example/crumb/internal/services"
	"github.com/example/crumb/internal/utils"
)

// AdminHandler manages staff order endpoints.
type AdminHandler struct {
	orders *repository.OrderRepository
	status *services.OrderStatusService
	loc    *time.Location
	now    func() time.Time
}

// NewAdminHandler constructs AdminHandler. loc is the store's time zone, used
// to pick "today" on the dashboard.
func NewAdminHandler(orders *repository.OrderRepository, status *services.OrderStatusService, loc *time.Location) *AdminHandler {
	return &AdminHandler{orders: orders, status: status, loc: loc, now: time.Now}
}

// DashboardStats returns the order count per status for one fulfillment date,
// today by default.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	date := c.Query("date", h.now().In(h.loc).Format(models.DateLayout))
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	counts, err := h.orders.StatusCounts(c.UserContext(), date)
	if err != nil {
		return err
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"date":             date,
			"total_orders":     total,
			"orders_by_status": counts,
		},
	})
}

// ListAllOrders returns all orders with pagination and filtering.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := repository.OrderFilter{
		Status:          c.Query("status"),
		FulfillmentDate: c.Query("date"),
		Search:          strings.TrimSpace(c.Query("search")),
	}

	orders, total, err := h.orders.ListAll(c.UserContext(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns any order with its history and the statuses it can move to.
func (h *AdminHandler) GetOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.FindByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"data":          order,
		"next_statuses": services.NextStatuses(*order),
	})
}

type statusUpdateRequest struct {
	Status models.OrderStatus `json:"status"`
	Note   string             `json:"note"`
}

// UpdateOrderStatus moves an order along its lifecycle.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req statusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" {
		return fiber.NewError(fiber.StatusBadRequest, "status is required")
	}

	actor := "staff"
	if user := middleware.CurrentUser(c); user != nil {
		actor = "staff:" + user.Email
	}

	order, err := h.status.Transition(c.UserContext(), id, req.Status, actor, strings.TrimSpace(req.Note))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"data":          order,
		"next_statuses": services.NextStatuses(*order),
	})
}

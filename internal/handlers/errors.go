package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/money"
	"github.com/example/crumb/internal/repository"
	"github.com/example/crumb/internal/services"
)

type errorBody struct {
	Kind      string       `json:"kind,omitempty"`
	Message   string       `json:"message"`
	Items     []string     `json:"items,omitempty"`
	Fields    []string     `json:"fields,omitempty"`
	Shortfall *money.Cents `json:"shortfall,omitempty"`
}

// ErrorHandler renders every error returned by a handler as
// {"success": false, "error": {...}}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, body := classify(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   body,
	})
}

func classify(err error) (int, errorBody) {
	var checkoutErr *services.CheckoutError
	if errors.As(err, &checkoutErr) {
		return checkoutErr.Info.Status, errorBody{
			Kind:      checkoutErr.Info.Kind,
			Message:   checkoutErr.Message,
			Items:     checkoutErr.Items,
			Fields:    checkoutErr.Fields,
			Shortfall: checkoutErr.Shortfall,
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, errorBody{Message: fiberErr.Message}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound, errorBody{Message: "not found"}
	case errors.Is(err, services.ErrInvalidTransition):
		return fiber.StatusConflict, errorBody{Message: err.Error()}
	case errors.Is(err, repository.ErrCapacityBelowBookings):
		return fiber.StatusConflict, errorBody{Message: err.Error()}
	case errors.Is(err, services.ErrPaymentsNotConfigured):
		return fiber.StatusServiceUnavailable, errorBody{Message: err.Error()}
	}

	return fiber.StatusInternalServerError, errorBody{Message: "internal server error"}
}

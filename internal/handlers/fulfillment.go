package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/money"
	"github.com/example/crumb/internal/repository"
	"github.com/example/crumb/internal/services"
)

// FulfillmentHandler serves the storefront's zone, slot and fee lookups.
type FulfillmentHandler struct {
	zones   *services.ZoneService
	slots   *services.SlotEngine
	catalog *repository.CatalogRepository
}

// NewFulfillmentHandler constructs FulfillmentHandler.
func NewFulfillmentHandler(zones *services.ZoneService, slots *services.SlotEngine, catalog *repository.CatalogRepository) *FulfillmentHandler {
	return &FulfillmentHandler{zones: zones, slots: slots, catalog: catalog}
}

// ResolveZone reports whether a ZIP is served for delivery and by which zone.
func (h *FulfillmentHandler) ResolveZone(c *fiber.Ctx) error {
	if _, ok := services.NormalizeZip(c.Query("zip")); !ok {
		return fiber.NewError(fiber.StatusBadRequest, "zip must be 5 digits")
	}

	zone, err := h.zones.Resolve(c.UserContext(), c.Query("zip"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"serviceable": zone != nil,
			"zone":        zone,
		},
	})
}

// ListSlots returns the bookable slots for a date and fulfillment type.
func (h *FulfillmentHandler) ListSlots(c *fiber.Ctx) error {
	ft := models.FulfillmentType(c.Query("type"))
	if !ft.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "type must be pickup or delivery")
	}
	custom, _ := strconv.ParseBool(c.Query("custom", "false"))

	slots, err := h.slots.ListAvailableSlots(c.UserContext(), c.Query("date"), ft, custom)
	if err != nil {
		if errors.Is(err, services.ErrInvalidDate) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	first, last := h.slots.BookingRange(custom)
	return c.JSON(fiber.Map{
		"success": true,
		"data":    slots,
		"booking_range": fiber.Map{
			"first": first,
			"last":  last,
		},
	})
}

type quoteLine struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

type quoteRequest struct {
	FulfillmentType models.FulfillmentType `json:"fulfillment_type"`
	Zip             string                 `json:"zip"`
	Date            string                 `json:"date"`
	WindowID        string                 `json:"window_id"`
	Items           []quoteLine            `json:"items"`
}

// Quote replays the shopper's current selection through the fulfillment flow
// and returns the step, fees and validity the checkout page renders. Prices
// come from the catalog, never from the request.
func (h *FulfillmentHandler) Quote(c *fiber.Ctx) error {
	var req quoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	ctx := c.UserContext()

	subtotal, custom, err := h.priceCart(c, req.Items)
	if err != nil {
		return err
	}

	state := services.ReduceFlow(services.NewFlow(), services.SubtotalChanged{Subtotal: subtotal})
	state = services.ReduceFlow(state, services.SelectType{Type: req.FulfillmentType})

	if req.FulfillmentType == models.FulfillmentDelivery && req.Zip != "" {
		zone, err := h.zones.Resolve(ctx, req.Zip)
		if err != nil {
			return err
		}
		state = services.ReduceFlow(state, services.ZoneResolved{Zone: zone})
	}

	if req.Date != "" {
		state = services.ReduceFlow(state, services.SelectDate{Date: req.Date})
	}

	slots := []models.TimeSlot{}
	if date, ft, ok := state.SlotQuery(); ok {
		slots, err = h.slots.ListAvailableSlots(ctx, date, ft, custom)
		if err != nil && !errors.Is(err, services.ErrInvalidDate) {
			return err
		}
		if windowID, parseErr := uuid.Parse(req.WindowID); parseErr == nil {
			for i := range slots {
				if slots[i].ID == windowID {
					state = services.ReduceFlow(state, services.SelectSlot{Slot: &slots[i]})
					break
				}
			}
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    state.Output(),
		"slots":   slots,
	})
}

// priceCart sums available catalog lines. Unknown or unavailable variants and
// oversized lines are left out; checkout reports them.
func (h *FulfillmentHandler) priceCart(c *fiber.Ctx, items []quoteLine) (money.Subtotal, bool, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.VariantID)
	}

	variants, err := h.catalog.VariantsByIDs(c.UserContext(), ids)
	if err != nil {
		return money.Subtotal{}, false, err
	}
	byID := make(map[uuid.UUID]models.ProductVariant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	var (
		lines  []money.Line
		custom bool
	)
	for _, item := range items {
		v, ok := byID[item.VariantID]
		if !ok || !v.IsAvailable || v.Product == nil || !v.Product.IsActive || item.Quantity > services.MaxLineQuantity {
			continue
		}
		lines = append(lines, money.Line{UnitPrice: v.Price, Quantity: item.Quantity})
		custom = custom || v.Product.IsCustom
	}
	return money.SubtotalOf(lines...), custom, nil
}

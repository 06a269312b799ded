package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/repository"
	"github.com/example/crumb/internal/services"
)

const windowLayout = "15:04"

// DeliveryAdminHandler manages delivery zones, time slots and blackout dates.
type DeliveryAdminHandler struct {
	zones *repository.ZoneRepository
	slots *repository.SlotRepository
}

// NewDeliveryAdminHandler constructs DeliveryAdminHandler.
func NewDeliveryAdminHandler(zones *repository.ZoneRepository, slots *repository.SlotRepository) *DeliveryAdminHandler {
	return &DeliveryAdminHandler{zones: zones, slots: slots}
}

// Zones

func (h *DeliveryAdminHandler) ListZones(c *fiber.Ctx) error {
	zones, err := h.zones.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": zones})
}

func (h *DeliveryAdminHandler) CreateZone(c *fiber.Ctx) error {
	item := models.DeliveryZone{IsActive: true}
	if err := c.BodyParser(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	item.ID = uuid.Nil
	if err := normalizeZone(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.zones.Create(c.UserContext(), &item); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

func (h *DeliveryAdminHandler) UpdateZone(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	item, err := h.zones.FindByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "zone not found")
		}
		return err
	}
	if err := c.BodyParser(item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	item.ID = id
	if err := normalizeZone(item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.zones.Save(c.UserContext(), item); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": item})
}

// DeactivateZone hides the zone from ZIP resolution; past orders keep their reference.
func (h *DeliveryAdminHandler) DeactivateZone(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	if err := h.zones.Deactivate(c.UserContext(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "zone not found")
		}
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func normalizeZone(z *models.DeliveryZone) error {
	z.Name = strings.TrimSpace(z.Name)
	if z.Name == "" {
		return errors.New("name is required")
	}
	if z.DeliveryFee < 0 || z.MinOrderAmount < 0 {
		return errors.New("amounts must not be negative")
	}
	if z.FreeDeliveryThreshold != nil && *z.FreeDeliveryThreshold < 0 {
		return errors.New("free delivery threshold must not be negative")
	}

	zips := make(models.ZipCodeSet, 0, len(z.ZipCodes))
	for _, raw := range z.ZipCodes {
		zip, ok := services.NormalizeZip(raw)
		if !ok {
			return fmt.Errorf("invalid zip code %q", raw)
		}
		if !zips.Contains(zip) {
			zips = append(zips, zip)
		}
	}
	z.ZipCodes = zips
	return nil
}

// Time slots

// ListSlots returns every slot, booked or not, between from and to inclusive.
func (h *DeliveryAdminHandler) ListSlots(c *fiber.Ctx) error {
	from, to := c.Query("from"), c.Query("to")
	if !validDate(from) || !validDate(to) {
		return fiber.NewError(fiber.StatusBadRequest, "from and to must be YYYY-MM-DD")
	}
	slots, err := h.slots.ListRange(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": slots})
}

func (h *DeliveryAdminHandler) CreateSlot(c *fiber.Ctx) error {
	item := models.TimeSlot{IsAvailable: true}
	if err := c.BodyParser(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	item.ID = uuid.Nil
	item.CurrentOrders = 0
	if err := validateSlot(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.slots.Create(c.UserContext(), &item); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

// UpdateSlot edits the schedule fields. Bookings are never touched and
// max_orders cannot go below them.
func (h *DeliveryAdminHandler) UpdateSlot(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	item, err := h.slots.FindByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "slot not found")
		}
		return err
	}
	if err := c.BodyParser(item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	item.ID = id
	if err := validateSlot(item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.slots.UpdateSchedule(c.UserContext(), item); err != nil {
		return err
	}

	updated, err := h.slots.FindByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": updated})
}

// DeleteSlot removes an unbooked slot, or switches off one that orders reference.
func (h *DeliveryAdminHandler) DeleteSlot(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	retired, err := h.slots.Retire(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "slot not found")
		}
		return err
	}
	if retired {
		return c.JSON(fiber.Map{"success": true, "retired": true})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func validateSlot(s *models.TimeSlot) error {
	if !validDate(s.Date) {
		return errors.New("date must be YYYY-MM-DD")
	}
	start, err := time.Parse(windowLayout, s.WindowStart)
	if err != nil {
		return errors.New("window_start must be HH:MM")
	}
	end, err := time.Parse(windowLayout, s.WindowEnd)
	if err != nil {
		return errors.New("window_end must be HH:MM")
	}
	if !start.Before(end) {
		return errors.New("window_start must be before window_end")
	}
	switch s.SlotType {
	case models.SlotPickup, models.SlotDelivery, models.SlotBoth:
	default:
		return errors.New("slot_type must be pickup, delivery or both")
	}
	if s.MaxOrders < 1 {
		return errors.New("max_orders must be at least 1")
	}
	return nil
}

// Blackout dates

func (h *DeliveryAdminHandler) ListBlackouts(c *fiber.Ctx) error {
	from := c.Query("from")
	if from != "" && !validDate(from) {
		return fiber.NewError(fiber.StatusBadRequest, "from must be YYYY-MM-DD")
	}
	items, err := h.slots.ListBlackouts(c.UserContext(), from)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

func (h *DeliveryAdminHandler) CreateBlackout(c *fiber.Ctx) error {
	var item models.BlackoutDate
	if err := c.BodyParser(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	item.ID = uuid.Nil
	if !validDate(item.Date) {
		return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	blocked, err := h.slots.IsBlackedOut(c.UserContext(), item.Date)
	if err != nil {
		return err
	}
	if blocked {
		return fiber.NewError(fiber.StatusConflict, "date is already blacked out")
	}

	if err := h.slots.CreateBlackout(c.UserContext(), &item); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

func (h *DeliveryAdminHandler) DeleteBlackout(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	if err := h.slots.DeleteBlackout(c.UserContext(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "blackout date not found")
		}
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func validDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}

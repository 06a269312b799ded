package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/models"
)

var (
	ErrCapacityExceeded = errors.New("slot is fully booked")
	ErrSlotNotFound     = errors.New("slot not found")
	ErrSlotNotOffered   = errors.New("slot is not bookable for this order")
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
)

// SlotStore is the slot table as the availability engine sees it.
type SlotStore interface {
	SlotsOn(ctx context.Context, date string) ([]models.TimeSlot, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.TimeSlot, error)
	IsBlackedOut(ctx context.Context, date string) (bool, error)
	IncrementIfAvailable(ctx context.Context, id uuid.UUID) (bool, error)
	DecrementIfPositive(ctx context.Context, id uuid.UUID) (bool, error)
}

// SlotPolicy is the booking policy applied when listing slots.
type SlotPolicy struct {
	LeadTime          time.Duration
	CustomLeadTime    time.Duration
	BookingWindowDays int
	Location          *time.Location
}

// SlotEngine lists bookable slots and books or releases capacity.
type SlotEngine struct {
	store  SlotStore
	policy SlotPolicy
	now    func() time.Time
}

func NewSlotEngine(store SlotStore, policy SlotPolicy) *SlotEngine {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &SlotEngine{store: store, policy: policy, now: time.Now}
}

// WithClock replaces the engine's clock.
func (e *SlotEngine) WithClock(now func() time.Time) *SlotEngine {
	e.now = now
	return e
}

// BookingRange returns the first and last bookable dates. The lead time is
// counted from now and rounded to its calendar date in the store's zone.
func (e *SlotEngine) BookingRange(custom bool) (first, last string) {
	now := e.now().In(e.policy.Location)
	lead := e.policy.LeadTime
	if custom {
		lead = e.policy.CustomLeadTime
	}
	// Truncated to the date: with a 48h lead at 23:00 on Jan 1, a 09:00 slot
	// on Jan 3 is bookable even though it starts 34h out.
	first = now.Add(lead).Format(models.DateLayout)
	last = now.AddDate(0, 0, e.policy.BookingWindowDays).Format(models.DateLayout)
	return first, last
}

// DateBookable reports whether date falls inside the booking window.
func (e *SlotEngine) DateBookable(date string, custom bool) (bool, error) {
	if _, err := time.ParseInLocation(models.DateLayout, date, e.policy.Location); err != nil {
		return false, ErrInvalidDate
	}
	first, last := e.BookingRange(custom)
	// Compared by calendar date, not by window start time.
	return date >= first && date <= last, nil
}

// ListAvailableSlots returns the slots on date that can still be booked for
// fulfillment type ft, ordered by window start. Full slots are left out.
// custom selects the longer lead time for made-to-order carts.
func (e *SlotEngine) ListAvailableSlots(ctx context.Context, date string, ft models.FulfillmentType, custom bool) ([]models.TimeSlot, error) {
	if !ft.Valid() {
		return nil, fmt.Errorf("unknown fulfillment type %q", ft)
	}

	ok, err := e.DateBookable(date, custom)
	if err != nil {
		return nil, err
	}
	available := []models.TimeSlot{}
	if !ok {
		return available, nil
	}

	blocked, err := e.store.IsBlackedOut(ctx, date)
	if err != nil {
		return nil, err
	}
	if blocked {
		return available, nil
	}

	slots, err := e.store.SlotsOn(ctx, date)
	if err != nil {
		return nil, err
	}

	for _, slot := range slots {
		if !slot.IsAvailable || !slot.SlotType.Accepts(ft) || slot.Remaining() == 0 {
			continue
		}
		available = append(available, slot)
	}

	sort.SliceStable(available, func(i, j int) bool {
		return available[i].WindowStart < available[j].WindowStart
	})
	return available, nil
}

// FindAvailableSlot returns slot id if it is among the slots ListAvailableSlots
// would offer, or ErrSlotNotOffered.
func (e *SlotEngine) FindAvailableSlot(ctx context.Context, date string, ft models.FulfillmentType, custom bool, id uuid.UUID) (*models.TimeSlot, error) {
	slots, err := e.ListAvailableSlots(ctx, date, ft, custom)
	if err != nil {
		if errors.Is(err, ErrInvalidDate) {
			return nil, ErrSlotNotOffered
		}
		return nil, err
	}
	for i := range slots {
		if slots[i].ID == id {
			return &slots[i], nil
		}
	}
	return nil, ErrSlotNotOffered
}

// BookSlot takes one unit of capacity. It returns ErrCapacityExceeded when the
// slot is full or switched off and ErrSlotNotFound when it does not exist.
func (e *SlotEngine) BookSlot(ctx context.Context, id uuid.UUID) error {
	booked, err := e.store.IncrementIfAvailable(ctx, id)
	if err != nil {
		return fmt.Errorf("book slot: %w", err)
	}
	if booked {
		return nil
	}

	if _, err := e.store.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSlotNotFound
		}
		return fmt.Errorf("book slot: %w", err)
	}
	return ErrCapacityExceeded
}

// ReleaseSlot gives one unit of capacity back. Releasing an empty slot is a no-op.
func (e *SlotEngine) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	released, err := e.store.DecrementIfPositive(ctx, id)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if !released {
		log.Printf("[Slots] release on slot %s had nothing to release", id)
	}
	return nil
}

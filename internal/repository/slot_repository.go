package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/models"
)

// SlotRepository stores time slots and blackout dates. Capacity is only ever
// changed through IncrementIfAvailable and DecrementIfPositive, which are
// single conditional UPDATE statements.
type SlotRepository struct {
	db *gorm.DB
}

func NewSlotRepository(db *gorm.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

// SlotsOn returns the slots on date ordered by window start.
func (r *SlotRepository) SlotsOn(ctx context.Context, date string) ([]models.TimeSlot, error) {
	var slots []models.TimeSlot
	err := r.db.WithContext(ctx).
		Where("date = ?", date).
		Order("window_start asc, window_end asc").
		Find(&slots).Error
	return slots, err
}

// ListRange returns slots with from <= date <= to.
func (r *SlotRepository) ListRange(ctx context.Context, from, to string) ([]models.TimeSlot, error) {
	var slots []models.TimeSlot
	err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date asc, window_start asc").
		Find(&slots).Error
	return slots, err
}

func (r *SlotRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.TimeSlot, error) {
	var slot models.TimeSlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *SlotRepository) Create(ctx context.Context, slot *models.TimeSlot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

// UpdateSchedule changes the admin-editable fields. current_orders is left
// alone; max_orders may not drop below it.
func (r *SlotRepository) UpdateSchedule(ctx context.Context, slot *models.TimeSlot) error {
	res := r.db.WithContext(ctx).
		Model(&models.TimeSlot{}).
		Where("id = ? AND current_orders <= ?", slot.ID, slot.MaxOrders).
		Updates(map[string]any{
			"date":         slot.Date,
			"window_start": slot.WindowStart,
			"window_end":   slot.WindowEnd,
			"slot_type":    slot.SlotType,
			"max_orders":   slot.MaxOrders,
			"is_available": slot.IsAvailable,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, slot.ID); err != nil {
			return err
		}
		return ErrCapacityBelowBookings
	}
	return nil
}

// ErrCapacityBelowBookings is returned when an edit would set max_orders under current_orders.
var ErrCapacityBelowBookings = errors.New("max orders below current bookings")

// IncrementIfAvailable books one unit of capacity. It reports false when the
// slot is full or switched off.
func (r *SlotRepository) IncrementIfAvailable(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TimeSlot{}).
		Where("id = ? AND is_available = ? AND current_orders < max_orders", id, true).
		UpdateColumn("current_orders", gorm.Expr("current_orders + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecrementIfPositive releases one unit of capacity, never going below zero.
func (r *SlotRepository) DecrementIfPositive(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TimeSlot{}).
		Where("id = ? AND current_orders > 0", id).
		UpdateColumn("current_orders", gorm.Expr("current_orders - ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Retire removes a slot, or switches it off when an order still references it.
// It reports whether the slot was kept as unavailable.
func (r *SlotRepository) Retire(ctx context.Context, id uuid.UUID) (bool, error) {
	retired := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.Order{}).Where("time_slot_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}

		if refs > 0 {
			retired = true
			res := tx.Model(&models.TimeSlot{}).Where("id = ?", id).Update("is_available", false)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
			return nil
		}

		res := tx.Delete(&models.TimeSlot{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return retired, err
}

// IsBlackedOut reports whether date is on the blackout list.
func (r *SlotRepository) IsBlackedOut(ctx context.Context, date string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BlackoutDate{}).
		Where("date = ?", date).
		Count(&count).Error
	return count > 0, err
}

func (r *SlotRepository) ListBlackouts(ctx context.Context, from string) ([]models.BlackoutDate, error) {
	var dates []models.BlackoutDate
	q := r.db.WithContext(ctx).Order("date asc")
	if from != "" {
		q = q.Where("date >= ?", from)
	}
	return dates, q.Find(&dates).Error
}

func (r *SlotRepository) CreateBlackout(ctx context.Context, blackout *models.BlackoutDate) error {
	return r.db.WithContext(ctx).Create(blackout).Error
}

func (r *SlotRepository) DeleteBlackout(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.BlackoutDate{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/crumb/internal/models"
)

// OrderRepository stores orders, their items and their status history.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create writes the order row, its items and its history entries in one
// transaction. An order without items is rejected before anything is written.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if len(order.Items) == 0 {
		return errors.New("order has no items")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Items {
			order.Items[i].OrderID = order.ID
		}
		if err := tx.Create(&order.Items).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		if len(order.History) > 0 {
			for i := range order.History {
				order.History[i].OrderID = order.ID
			}
			if err := tx.Create(&order.History).Error; err != nil {
				return fmt.Errorf("insert order history: %w", err)
			}
		}
		return nil
	})
}

// Delete removes an order with its items and history. Used to undo a checkout
// that could not complete.
func (r *OrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderStatusHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Order{}, "id = ?", id).Error
	})
}

// SetPaymentSession records the payment provider's session id on the order.
func (r *OrderRepository) SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_session_id", sessionID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID loads an order with items and history (oldest first).
func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(r.db.WithContext(ctx)).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUser loads an order only if userID owns it.
func (r *OrderRepository) FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(r.db.WithContext(ctx)).
		First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns a page of the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := query.Preload("Items").
		Order("received_at desc").
		Limit(limit).Offset(offset).
		Find(&orders).Error
	return orders, total, err
}

// OrderFilter narrows the staff order list. Empty fields match everything.
type OrderFilter struct {
	Status          string
	FulfillmentDate string
	Search          string
}

// ListAll returns a page of all orders for staff, newest first. Search matches
// the order number or contact email.
func (r *OrderRepository) ListAll(ctx context.Context, filter OrderFilter, limit, offset int) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.FulfillmentDate != "" {
		query = query.Where("fulfillment_date = ?", filter.FulfillmentDate)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(order_number) LIKE ? OR LOWER(contact_email) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := query.Preload("Items").
		Order("received_at desc").
		Limit(limit).Offset(offset).
		Find(&orders).Error
	return orders, total, err
}

// StatusCounts returns the number of orders per status for one fulfillment date.
func (r *OrderRepository) StatusCounts(ctx context.Context, fulfillmentDate string) (map[models.OrderStatus]int64, error) {
	var rows []struct {
		Status models.OrderStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, count(*) as count").
		Where("fulfillment_date = ?", fulfillmentDate).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountBySlot returns how many orders reference the slot.
func (r *OrderRepository) CountBySlot(ctx context.Context, slotID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("time_slot_id = ?", slotID).Count(&count).Error
	return count, err
}

// StatusGuard inspects the locked order and rejects the change with an error.
type StatusGuard func(order *models.Order) error

// AppendStatus locks the order row, runs guard, appends entry to the history
// and mirrors it onto the status column and its <status>_at timestamp, all in
// one transaction. The status column is never written any other way.
func (r *OrderRepository) AppendStatus(ctx context.Context, id uuid.UUID, entry models.OrderStatusHistory, guard StatusGuard) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&order, "id = ?", id).Error; err != nil {
			return err
		}

		if guard != nil {
			if err := guard(&order); err != nil {
				return err
			}
		}

		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}
		entry.OrderID = order.ID
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		stampColumn := string(entry.Status) + "_at"
		if err := tx.Model(&models.Order{}).
			Where("id = ?", order.ID).
			Updates(map[string]any{
				"status":    entry.Status,
				stampColumn: entry.CreatedAt,
			}).Error; err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		order.Status = entry.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.FindByID(ctx, id)
}

func (r *OrderRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc")
		})
}

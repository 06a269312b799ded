package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/database"
	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/money"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.OpenSQLite(":memory:", "silent")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedSlot(t *testing.T, db *gorm.DB, date string, max, current int) *models.TimeSlot {
	t.Helper()

	slot := &models.TimeSlot{
		Date:          date,
		WindowStart:   "10:00",
		WindowEnd:     "12:00",
		SlotType:      models.SlotBoth,
		MaxOrders:     max,
		CurrentOrders: current,
		IsAvailable:   true,
	}
	require.NoError(t, db.Create(slot).Error)
	return slot
}

func newOrder(slotID *uuid.UUID) *models.Order {
	return &models.Order{
		OrderNumber:     "CR-" + uuid.NewString()[:8],
		Status:          models.StatusReceived,
		ContactEmail:    "ada@example.com",
		ContactName:     "Ada",
		ContactPhone:    "555-0100",
		FulfillmentType: models.FulfillmentPickup,
		FulfillmentDate: "2026-01-03",
		TimeSlotID:      slotID,
		Subtotal:        1898,
		Total:           2050,
		Items: []models.OrderItem{{
			ProductID:   uuid.New(),
			VariantID:   uuid.New(),
			ProductName: "Sourdough",
			UnitPrice:   949,
			Quantity:    2,
			LineTotal:   money.Cents(1898),
		}},
		History: []models.OrderStatusHistory{{
			Status: models.StatusReceived,
			Actor:  "checkout",
		}},
	}
}

func countOrders(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.WithContext(context.Background()).Model(&models.Order{}).Count(&n).Error)
	return n
}

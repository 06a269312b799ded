package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/database"
	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/money"
	"github.com/example/crumb/internal/repository"
)

// testNow is Jan 1, 10:00 in the store's zone.
var testNow = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

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

func testPolicy() SlotPolicy {
	return SlotPolicy{
		LeadTime:          24 * time.Hour,
		CustomLeadTime:    48 * time.Hour,
		BookingWindowDays: 14,
		Location:          time.UTC,
	}
}

func newTestEngine(db *gorm.DB) *SlotEngine {
	return NewSlotEngine(repository.NewSlotRepository(db), testPolicy()).WithClock(fixedClock)
}

func cents(v money.Cents) *money.Cents { return &v }

func createSlot(t *testing.T, db *gorm.DB, date, start string, slotType models.SlotType, max, current int) *models.TimeSlot {
	t.Helper()
	slot := &models.TimeSlot{
		Date:          date,
		WindowStart:   start,
		WindowEnd:     "18:00",
		SlotType:      slotType,
		MaxOrders:     max,
		CurrentOrders: current,
		IsAvailable:   true,
	}
	require.NoError(t, db.Create(slot).Error)
	return slot
}

func createZone(t *testing.T, db *gorm.DB, name string, zips []string, fee, min money.Cents, threshold *money.Cents) *models.DeliveryZone {
	t.Helper()
	zone := &models.DeliveryZone{
		Name:                  name,
		ZipCodes:              models.ZipCodeSet(zips),
		DeliveryFee:           fee,
		MinOrderAmount:        min,
		FreeDeliveryThreshold: threshold,
		IsActive:              true,
	}
	require.NoError(t, db.Create(zone).Error)
	return zone
}

func createVariant(t *testing.T, db *gorm.DB, productName string, custom bool, price money.Cents) *models.ProductVariant {
	t.Helper()
	product := &models.Product{
		Slug:     uuid.NewString(),
		Name:     productName,
		IsCustom: custom,
		IsActive: true,
	}
	require.NoError(t, db.Create(product).Error)

	variant := &models.ProductVariant{
		ProductID:   product.ID,
		Name:        "Regular",
		Price:       price,
		IsAvailable: true,
	}
	require.NoError(t, db.Create(variant).Error)
	variant.Product = product
	return variant
}

type fakePayments struct {
	mu       sync.Mutex
	requests []PaymentSessionRequest
	err      error
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, req PaymentSessionRequest) (*PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &PaymentSession{
		ID:  "cs_test_" + req.OrderID.String()[:8],
		URL: "https://pay.example.com/" + req.OrderID.String(),
	}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	received []models.Order
	changes  []models.OrderStatus
}

func (r *recordingNotifier) OrderReceived(order models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, order)
}

func (r *recordingNotifier) StatusChanged(order models.Order, _ models.OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, order.Status)
}

type checkoutFixture struct {
	db       *gorm.DB
	service  *CheckoutService
	payments *fakePayments
	notifier *recordingNotifier
	orders   *repository.OrderRepository
	slots    *repository.SlotRepository
	engine   *SlotEngine
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	db := newTestDB(t)

	f := &checkoutFixture{
		db:       db,
		payments: &fakePayments{},
		notifier: &recordingNotifier{},
		orders:   repository.NewOrderRepository(db),
		slots:    repository.NewSlotRepository(db),
		engine:   newTestEngine(db),
	}
	f.service = NewCheckoutService(CheckoutDeps{
		Variants: repository.NewCatalogRepository(db),
		Orders:   f.orders,
		Zones:    NewZoneService(repository.NewZoneRepository(db)),
		Slots:    f.engine,
		Payments: f.payments,
		Notifier: f.notifier,
	}, CheckoutPolicy{
		TaxRate:       0.08,
		Currency:      "usd",
		PublicSiteURL: "https://crumb.example.com",
	}).WithClock(fixedClock)
	return f
}

func (f *checkoutFixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func (f *checkoutFixture) slot(t *testing.T, id uuid.UUID) *models.TimeSlot {
	t.Helper()
	slot, err := f.slots.FindByID(context.Background(), id)
	require.NoError(t, err)
	return slot
}

func pickupInput(variant *models.ProductVariant, qty int, slot *models.TimeSlot) CheckoutInput {
	return CheckoutInput{
		Contact:         Contact{Email: "ada@example.com", Name: "Ada Lovelace", Phone: "555-0100"},
		FulfillmentType: models.FulfillmentPickup,
		Date:            slot.Date,
		WindowID:        slot.ID.String(),
		Items: []CartLine{{
			VariantID: variant.ID,
			Quantity:  qty,
			UnitPrice: variant.Price,
		}},
	}
}

func deliveryInput(variant *models.ProductVariant, qty int, slot *models.TimeSlot, zip string) CheckoutInput {
	in := pickupInput(variant, qty, slot)
	in.FulfillmentType = models.FulfillmentDelivery
	in.DeliveryAddress = &Address{Line1: "1 Market St", City: "San Francisco", State: "CA", Zip: zip}
	return in
}

func requireCheckoutKind(t *testing.T, err error, info CheckoutErrorInfo) *CheckoutError {
	t.Helper()
	require.Error(t, err)
	var ce *CheckoutError
	require.True(t, errors.As(err, &ce), "expected *CheckoutError, got %T: %v", err, err)
	require.Equal(t, info.Kind, ce.Info.Kind, ce.Message)
	return ce
}

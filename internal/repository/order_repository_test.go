package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/models"
)

func TestCreateAndFindOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := newOrder(nil)
	require.NoError(t, repo.Create(ctx, order))
	require.NotEqual(t, uuid.Nil, order.ID)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Sourdough", got.Items[0].ProductName)
	require.Len(t, got.History, 1)
	assert.Equal(t, models.StatusReceived, got.History[0].Status)
}

func TestCreateRejectsEmptyOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)

	order := newOrder(nil)
	order.Items = nil
	assert.Error(t, repo.Create(context.Background(), order))
	assert.Zero(t, countOrders(t, db))
}

func TestCreateRollsBackWhenItemsFail(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_items", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "order_items" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))
	repo := NewOrderRepository(db)

	order := newOrder(nil)
	err := repo.Create(context.Background(), order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order items")

	assert.Zero(t, countOrders(t, db))
	_, err = repo.FindByID(context.Background(), order.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDeleteRemovesItemsAndHistory(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := newOrder(nil)
	require.NoError(t, repo.Create(ctx, order))
	require.NoError(t, repo.Delete(ctx, order.ID))

	assert.Zero(t, countOrders(t, db))
	var items, history int64
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&items).Error)
	require.NoError(t, db.Model(&models.OrderStatusHistory{}).Count(&history).Error)
	assert.Zero(t, items)
	assert.Zero(t, history)
}

func TestAppendStatusWritesHistoryAndTimestamp(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := newOrder(nil)
	require.NoError(t, repo.Create(ctx, order))

	got, err := repo.AppendStatus(ctx, order.ID, models.OrderStatusHistory{
		Status: models.StatusConfirmed,
		Actor:  "payment-webhook",
		Note:   "cs_test_123",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusConfirmed, got.Status)
	require.NotNil(t, got.ConfirmedAt)
	require.Len(t, got.History, 2)
	assert.Equal(t, models.StatusConfirmed, got.History[1].Status)
	assert.Equal(t, "payment-webhook", got.History[1].Actor)
}

func TestAppendStatusGuardAbortsWithoutWriting(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := newOrder(nil)
	require.NoError(t, repo.Create(ctx, order))

	rejected := errors.New("nope")
	_, err := repo.AppendStatus(ctx, order.ID, models.OrderStatusHistory{Status: models.StatusReady, Actor: "admin"},
		func(*models.Order) error { return rejected })
	assert.ErrorIs(t, err, rejected)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, got.Status)
	assert.Len(t, got.History, 1)
	assert.Nil(t, got.ReadyAt)
}

func TestListByUserAndPaymentSession(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	mine := newOrder(nil)
	mine.UserID = &userID
	require.NoError(t, repo.Create(ctx, mine))
	require.NoError(t, repo.Create(ctx, newOrder(nil)))

	orders, total, err := repo.ListByUser(ctx, userID, "", 20, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, mine.ID, orders[0].ID)

	require.NoError(t, repo.SetPaymentSession(ctx, mine.ID, "cs_test_abc"))
	got, err := repo.FindForUser(ctx, mine.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_abc", got.PaymentSessionID)

	_, err = repo.FindForUser(ctx, mine.ID, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.SetPaymentSession(ctx, uuid.New(), "x"), gorm.ErrRecordNotFound)
}

func TestListAllAndStatusCounts(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	first := newOrder(nil)
	first.OrderNumber = "CR-260103-AAAAAA"
	second := newOrder(nil)
	second.OrderNumber = "CR-260103-BBBBBB"
	second.ContactEmail = "Grace@Example.com"
	other := newOrder(nil)
	other.FulfillmentDate = "2026-01-04"
	for _, o := range []*models.Order{first, second, other} {
		require.NoError(t, repo.Create(ctx, o))
	}
	_, err := repo.AppendStatus(ctx, second.ID, models.OrderStatusHistory{Status: models.StatusConfirmed, Actor: "payment"}, nil)
	require.NoError(t, err)

	orders, total, err := repo.ListAll(ctx, OrderFilter{FulfillmentDate: "2026-01-03"}, 20, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, orders, 2)

	orders, total, err = repo.ListAll(ctx, OrderFilter{Search: "grace@"}, 20, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, second.ID, orders[0].ID)

	_, total, err = repo.ListAll(ctx, OrderFilter{Status: string(models.StatusReceived)}, 1, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	counts, err := repo.StatusCounts(ctx, "2026-01-03")
	require.NoError(t, err)
	assert.Equal(t, map[models.OrderStatus]int64{
		models.StatusReceived:  1,
		models.StatusConfirmed: 1,
	}, counts)
}

package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/money"
)

func TestCheckoutPickupSuccess(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	bread := createVariant(t, f.db, "Sourdough", false, 949)
	slot := createSlot(t, f.db, "2026-01-02", "09:00", models.SlotPickup, 3, 0)

	userID := uuid.New()
	in := pickupInput(bread, 2, slot)
	in.User = &CurrentUser{ID: userID, Email: "ada@example.com"}
	in.Contact.Email = ""
	in.Tip = 200

	res, err := f.service.Submit(ctx, in)
	require.NoError(t, err)
	assert.Contains(t, res.RedirectURL, res.OrderID.String())
	assert.NotEmpty(t, res.OrderNumber)

	order, err := f.orders.FindByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, order.Status)
	require.NotNil(t, order.UserID)
	assert.Equal(t, userID, *order.UserID)
	assert.Equal(t, "ada@example.com", order.ContactEmail)
	assert.Equal(t, money.Cents(1898), order.Subtotal)
	assert.Equal(t, money.Cents(0), order.DeliveryFee)
	assert.Equal(t, money.Cents(152), order.TaxAmount)
	assert.Equal(t, money.Cents(1898+152+200), order.Total)
	assert.Equal(t, res.Total, order.Total)
	assert.Nil(t, order.DeliveryZoneID)
	require.NotNil(t, order.TimeSlotID)
	assert.Equal(t, slot.ID, *order.TimeSlotID)
	assert.Equal(t, "cs_test_"+order.ID.String()[:8], order.PaymentSessionID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Sourdough", order.Items[0].ProductName)
	assert.Equal(t, money.Cents(1898), order.Items[0].LineTotal)
	require.Len(t, order.History, 1)
	assert.Equal(t, "checkout", order.History[0].Actor)

	assert.Equal(t, 1, f.slot(t, slot.ID).CurrentOrders)

	require.Len(t, f.payments.requests, 1)
	req := f.payments.requests[0]
	assert.Equal(t, order.ID, req.OrderID)
	assert.Equal(t, "https://crumb.example.com/checkout/success?order_id="+order.ID.String(), req.SuccessURL)
	assert.Equal(t, "https://crumb.example.com/checkout/cancel?order_id="+order.ID.String(), req.CancelURL)
	assert.Equal(t, []PaymentLineItem{
		{Name: "Sourdough (Regular)", UnitAmount: 949, Quantity: 2},
		{Name: "Tax", UnitAmount: 152, Quantity: 1},
		{Name: "Tip", UnitAmount: 200, Quantity: 1},
	}, req.LineItems)

	var charged money.Cents
	for _, li := range req.LineItems {
		charged += li.UnitAmount * money.Cents(li.Quantity)
	}
	assert.Equal(t, order.Total, charged)

	assert.Len(t, f.notifier.received, 1)
}

func TestCheckoutDeliveryChargesServerFee(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	cake := createVariant(t, f.db, "Carrot Cake", false, 2500)
	createZone(t, f.db, "Downtown", []string{"94102"}, 500, 2500, cents(7500))
	slot := createSlot(t, f.db, "2026-01-04", "13:00", models.SlotDelivery, 3, 0)

	in := deliveryInput(cake, 2, slot, "94102")
	in.SubmittedSubtotal = 100
	in.SubmittedFee = 0

	res, err := f.service.Submit(ctx, in)
	require.NoError(t, err)

	order, err := f.orders.FindByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, money.Cents(5000), order.Subtotal)
	assert.Equal(t, money.Cents(500), order.DeliveryFee)
	assert.Equal(t, money.Cents(400), order.TaxAmount)
	assert.Equal(t, money.Cents(5900), order.Total)
	assert.NotNil(t, order.DeliveryZoneID)
	assert.Equal(t, "94102", order.DeliveryZip)

	items := f.payments.requests[0].LineItems
	assert.Contains(t, items, PaymentLineItem{Name: "Delivery fee", UnitAmount: 500, Quantity: 1})
}

func TestCheckoutFeeMatchesFlowEstimate(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	cake := createVariant(t, f.db, "Opera Cake", false, 3750)
	zone := createZone(t, f.db, "Downtown", []string{"94102"}, 500, 2500, cents(7500))

	for _, qty := range []int{1, 2, 3} {
		slot := createSlot(t, f.db, "2026-01-04", "13:00", models.SlotBoth, 5, 0)
		subtotal := money.SubtotalOf(money.Line{UnitPrice: cake.Price, Quantity: qty})

		flow := reduceAll(NewFlow(),
			SubtotalChanged{Subtotal: subtotal},
			SelectType{Type: models.FulfillmentDelivery},
			ZoneResolved{Zone: zone},
			SelectDate{Date: slot.Date},
			SelectSlot{Slot: slot},
		)
		out := flow.Output()
		require.True(t, out.IsValid)

		in := deliveryInput(cake, qty, slot, "94102")
		in.SubmittedSubtotal = out.Subtotal.Cents()
		in.SubmittedFee = out.DeliveryFee

		res, err := f.service.Submit(ctx, in)
		require.NoError(t, err)
		order, err := f.orders.FindByID(ctx, res.OrderID)
		require.NoError(t, err)
		assert.Equal(t, out.DeliveryFee, order.DeliveryFee, "qty %d", qty)
		assert.Equal(t, out.Subtotal.Cents(), order.Subtotal, "qty %d", qty)
	}
}

func TestCheckoutValidationFailuresWriteNothing(t *testing.T) {
	f := newCheckoutFixture(t)
	bread := createVariant(t, f.db, "Sourdough", false, 949)
	custom := createVariant(t, f.db, "Custom Birthday Cake", true, 6500)
	createZone(t, f.db, "Mission", []string{"94110"}, 700, 4000, nil)
	slot := createSlot(t, f.db, "2026-01-02", "09:00", models.SlotBoth, 3, 0)

	gone := createVariant(t, f.db, "Stollen", false, 1800)
	require.NoError(t, f.db.Model(&models.ProductVariant{}).Where("id = ?", gone.ID).Update("is_available", false).Error)

	tests := []struct {
		name  string
		input func() CheckoutInput
		kind  CheckoutErrorInfo
		check func(t *testing.T, ce *CheckoutError)
	}{
		{
			name:  "empty cart",
			input: func() CheckoutInput { in := pickupInput(bread, 1, slot); in.Items = nil; return in },
			kind:  CheckoutErrorEmptyCart,
		},
		{
			name: "missing contact and address",
			input: func() CheckoutInput {
				in := deliveryInput(bread, 1, slot, "94110")
				in.Contact = Contact{Name: "Ada"}
				in.DeliveryAddress.City = ""
				return in
			},
			kind: CheckoutErrorMissingFields,
			check: func(t *testing.T, ce *CheckoutError) {
				assert.Equal(t, []string{"contact.email", "contact.phone", "delivery_address.city"}, ce.Fields)
			},
		},
		{
			name: "missing window and bad quantity",
			input: func() CheckoutInput {
				in := pickupInput(bread, 0, slot)
				in.WindowID = "not-a-uuid"
				return in
			},
			kind: CheckoutErrorMissingFields,
			check: func(t *testing.T, ce *CheckoutError) {
				assert.Equal(t, []string{"window_id", "items[0].quantity"}, ce.Fields)
			},
		},
		{
			name: "stale price",
			input: func() CheckoutInput {
				in := pickupInput(bread, 1, slot)
				in.Items[0].UnitPrice = 899
				return in
			},
			kind: CheckoutErrorPriceChanged,
			check: func(t *testing.T, ce *CheckoutError) {
				assert.Equal(t, []string{"Sourdough"}, ce.Items)
			},
		},
		{
			name: "unavailable and unknown items",
			input: func() CheckoutInput {
				in := pickupInput(bread, 1, slot)
				in.Items = append(in.Items,
					CartLine{VariantID: gone.ID, Quantity: 1, UnitPrice: gone.Price},
					CartLine{VariantID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Quantity: 1},
				)
				return in
			},
			kind: CheckoutErrorItemUnavailable,
			check: func(t *testing.T, ce *CheckoutError) {
				assert.Equal(t, []string{"Stollen", "00000000-0000-0000-0000-000000000001"}, ce.Items)
			},
		},
		{
			name:  "outside service area",
			input: func() CheckoutInput { return deliveryInput(bread, 10, slot, "10001") },
			kind:  CheckoutErrorServiceAreaUnavailable,
		},
		{
			name:  "below zone minimum",
			input: func() CheckoutInput { return deliveryInput(bread, 2, slot, "94110") },
			kind:  CheckoutErrorMinimumNotMet,
			check: func(t *testing.T, ce *CheckoutError) {
				require.NotNil(t, ce.Shortfall)
				assert.Equal(t, money.Cents(4000-1898), *ce.Shortfall)
				assert.Contains(t, ce.Message, "21.02")
			},
		},
		{
			name:  "custom item inside lead time",
			input: func() CheckoutInput { return pickupInput(custom, 1, slot) },
			kind:  CheckoutErrorSlotUnavailable,
		},
		{
			name: "unknown slot",
			input: func() CheckoutInput {
				in := pickupInput(bread, 1, slot)
				in.WindowID = uuid.NewString()
				return in
			},
			kind: CheckoutErrorSlotUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Submit(context.Background(), tt.input())
			ce := requireCheckoutKind(t, err, tt.kind)
			assert.Equal(t, tt.kind.Status, ce.Info.Status)
			if tt.check != nil {
				tt.check(t, ce)
			}
		})
	}

	assert.Zero(t, f.countOrders(t))
	assert.Equal(t, 0, f.slot(t, slot.ID).CurrentOrders)
	assert.Empty(t, f.payments.requests)
}

func TestCheckoutCustomItemAfterLeadTime(t *testing.T) {
	f := newCheckoutFixture(t)
	custom := createVariant(t, f.db, "Custom Birthday Cake", true, 6500)
	slot := createSlot(t, f.db, "2026-01-03", "09:00", models.SlotPickup, 3, 0)

	_, err := f.service.Submit(context.Background(), pickupInput(custom, 1, slot))
	require.NoError(t, err)
}

func TestCheckoutSlotRace(t *testing.T) {
	f := newCheckoutFixture(t)
	bread := createVariant(t, f.db, "Sourdough", false, 949)
	slot := createSlot(t, f.db, "2026-01-02", "09:00", models.SlotPickup, 1, 0)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Submit(context.Background(), pickupInput(bread, 1, slot))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireCheckoutKind(t, err, CheckoutErrorSlotUnavailable)
	}
	assert.Equal(t, 1, succeeded)

	var referencing int64
	require.NoError(t, f.db.Model(&models.Order{}).Where("time_slot_id = ?", slot.ID).Count(&referencing).Error)
	assert.EqualValues(t, 1, referencing)
	assert.Equal(t, 1, f.slot(t, slot.ID).CurrentOrders)
}

func TestCheckoutFullSlotAfterOrderWritten(t *testing.T) {
	f := newCheckoutFixture(t)
	bread := createVariant(t, f.db, "Sourdough", false, 949)
	slot := createSlot(t, f.db, "2026-01-02", "09:00", models.SlotPickup, 1, 0)

	// The slot fills between the availability check and the booking.
	f.service.deps.Slots = &fillingSlots{SlotEngine: f.engine, fill: func() {
		require.NoError(t, f.engine.BookSlot(context.Background(), slot.ID))
	}}

	_, err := f.service.Submit(context.Background(), pickupInput(bread, 1, slot))
	requireCheckoutKind(t, err, CheckoutErrorSlotUnavailable)
	assert.Zero(t, f.countOrders(t))
	assert.Equal(t, 1, f.slot(t, slot.ID).CurrentOrders)
	assert.Empty(t, f.payments.requests)
}

type fillingSlots struct {
	*SlotEngine
	fill func()
}

func (s *fillingSlots) BookSlot(ctx context.Context, id uuid.UUID) error {
	s.fill()
	return s.SlotEngine.BookSlot(ctx, id)
}

func TestCheckoutPaymentFailureRollsBack(t *testing.T) {
	f := newCheckoutFixture(t)
	bread := createVariant(t, f.db, "Sourdough", false, 949)
	slot := createSlot(t, f.db, "2026-01-02", "09:00", models.SlotPickup, 2, 0)
	f.payments.err = errors.New("stripe: card_declined")

	_, err := f.service.Submit(context.Background(), pickupInput(bread, 1, slot))
	ce := requireCheckoutKind(t, err, CheckoutErrorPaymentSession)
	assert.ErrorContains(t, errors.Unwrap(ce), "card_declined")

	assert.Zero(t, f.countOrders(t))
	var items int64
	require.NoError(t, f.db.Model(&models.OrderItem{}).Count(&items).Error)
	assert.Zero(t, items)
	assert.Equal(t, 0, f.slot(t, slot.ID).CurrentOrders)
	assert.Empty(t, f.notifier.received)
}

func TestCheckoutErrorIsMatchesKind(t *testing.T) {
	err := errPriceChanged([]string{"Sourdough"})
	assert.ErrorIs(t, err, &CheckoutError{Info: CheckoutErrorPriceChanged})
	assert.NotErrorIs(t, err, &CheckoutError{Info: CheckoutErrorItemUnavailable})
	assert.Equal(t, "PriceChanged: prices changed for: Sourdough; refresh your cart and try again", err.Error())
}

func TestNewOrderNumber(t *testing.T) {
	n := NewOrderNumber(testNow)
	assert.Regexp(t, `^CR-260101-[0-9A-F]{6}$`, n)
	assert.NotEqual(t, n, NewOrderNumber(testNow))
}

// cancellingPayments simulates the shopper's request dying mid-call.
type cancellingPayments struct {
	cancel context.CancelFunc
}

func (p *cancellingPayments) CreateCheckoutSession(ctx context.Context, _ PaymentSessionRequest) (*PaymentSession, error) {
	p.cancel()
	return nil, ctx.Err()
}

func TestCheckoutRollsBackAfterRequestCancelled(t *testing.T) {
	f := newCheckoutFixture(t)
	bread := createVariant(t, f.db, "Sourdough", false, 949)
	slot := createSlot(t, f.db, "2026-01-02", "09:00", models.SlotPickup, 2, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.service.deps.Payments = &cancellingPayments{cancel: cancel}

	_, err := f.service.Submit(ctx, pickupInput(bread, 1, slot))
	ce := requireCheckoutKind(t, err, CheckoutErrorPaymentSession)
	assert.ErrorIs(t, errors.Unwrap(ce), context.Canceled)

	assert.Zero(t, f.countOrders(t))
	assert.Equal(t, 0, f.slot(t, slot.ID).CurrentOrders)
}

func TestCheckoutRejectsOversizedQuantity(t *testing.T) {
	f := newCheckoutFixture(t)
	bread := createVariant(t, f.db, "Sourdough", false, 949)
	slot := createSlot(t, f.db, "2026-01-02", "09:00", models.SlotPickup, 2, 0)

	in := pickupInput(bread, 1, slot)
	in.Items[0].Quantity = 1 << 40
	_, err := f.service.Submit(context.Background(), in)
	ce := requireCheckoutKind(t, err, CheckoutErrorMissingFields)
	assert.Equal(t, []string{"items[0].quantity"}, ce.Fields)

	in.Items[0].Quantity = MaxLineQuantity
	_, err = f.service.Submit(context.Background(), in)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, f.countOrders(t))
}

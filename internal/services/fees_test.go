package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/money"
)

func subtotalOf(c money.Cents) money.Subtotal {
	return money.SubtotalOf(money.Line{UnitPrice: c, Quantity: 1})
}

func TestDeliveryFeeFreeThresholdBoundary(t *testing.T) {
	z := &models.DeliveryZone{DeliveryFee: 500, FreeDeliveryThreshold: cents(7500)}

	assert.Equal(t, money.Cents(500), DeliveryFee(z, subtotalOf(7499)))
	assert.Equal(t, money.Cents(0), DeliveryFee(z, subtotalOf(7500)))
	assert.Equal(t, money.Cents(0), DeliveryFee(z, subtotalOf(12000)))

	remaining := AmountToFreeDelivery(z, subtotalOf(7499))
	require.NotNil(t, remaining)
	assert.Equal(t, money.Cents(1), *remaining)

	remaining = AmountToFreeDelivery(z, subtotalOf(9000))
	require.NotNil(t, remaining)
	assert.Equal(t, money.Cents(0), *remaining)
}

func TestDeliveryFeeWithoutThreshold(t *testing.T) {
	z := &models.DeliveryZone{DeliveryFee: 700}

	assert.Equal(t, money.Cents(700), DeliveryFee(z, subtotalOf(100000)))
	assert.Nil(t, AmountToFreeDelivery(z, subtotalOf(100)))
}

func TestMinimumOrder(t *testing.T) {
	z := &models.DeliveryZone{MinOrderAmount: 4000}

	assert.False(t, MeetsMinimum(z, subtotalOf(3000)))
	assert.Equal(t, money.Cents(1000), AmountToMinimum(z, subtotalOf(3000)))
	assert.Equal(t, "10.00", AmountToMinimum(z, subtotalOf(3000)).String())

	assert.True(t, MeetsMinimum(z, subtotalOf(4000)))
	assert.Equal(t, money.Cents(0), AmountToMinimum(z, subtotalOf(4500)))
}

func TestFeeRulesForPickup(t *testing.T) {
	q := QuoteFees(nil, subtotalOf(100))
	assert.Equal(t, money.Cents(0), q.DeliveryFee)
	assert.True(t, q.MeetsMinimum)
	assert.Equal(t, money.Cents(0), q.AmountToMinimum)
	assert.Nil(t, q.AmountToFreeDelivery)
}

func TestDeliveryFeeNeverIncreasesWithSubtotal(t *testing.T) {
	zones := []*models.DeliveryZone{
		{DeliveryFee: 500, FreeDeliveryThreshold: cents(7500)},
		{DeliveryFee: 900},
		{DeliveryFee: 0, FreeDeliveryThreshold: cents(0)},
	}
	for _, z := range zones {
		prev := DeliveryFee(z, subtotalOf(0))
		for s := money.Cents(1); s <= 20000; s += 37 {
			fee := DeliveryFee(z, subtotalOf(s))
			assert.LessOrEqual(t, fee, prev, "subtotal %s", s)
			prev = fee
		}
	}
}

func TestQuoteFeesMatchesIndividualRules(t *testing.T) {
	z := &models.DeliveryZone{DeliveryFee: 500, FreeDeliveryThreshold: cents(7500), MinOrderAmount: 2500}
	s := money.SubtotalOf(money.Line{UnitPrice: 949, Quantity: 2}, money.Line{UnitPrice: 1200, Quantity: 1})

	q := QuoteFees(z, s)
	assert.Equal(t, DeliveryFee(z, s), q.DeliveryFee)
	assert.Equal(t, MeetsMinimum(z, s), q.MeetsMinimum)
	assert.Equal(t, AmountToMinimum(z, s), q.AmountToMinimum)
	assert.Equal(t, *AmountToFreeDelivery(z, s), *q.AmountToFreeDelivery)
	assert.Equal(t, money.Cents(3098), q.Subtotal.Cents())
}

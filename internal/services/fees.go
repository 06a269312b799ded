package services

import (
	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/money"
)

// The fee rules below treat a nil zone as pickup: no fee, no minimum.

// DeliveryFee is zero once the subtotal reaches the zone's free-delivery
// threshold, otherwise the zone's flat fee.
func DeliveryFee(zone *models.DeliveryZone, subtotal money.Subtotal) money.Cents {
	if zone == nil {
		return 0
	}
	if zone.FreeDeliveryThreshold != nil && subtotal.Cents() >= *zone.FreeDeliveryThreshold {
		return 0
	}
	return zone.DeliveryFee
}

// MeetsMinimum reports whether subtotal reaches the zone's minimum order.
func MeetsMinimum(zone *models.DeliveryZone, subtotal money.Subtotal) bool {
	if zone == nil {
		return true
	}
	return subtotal.Cents() >= zone.MinOrderAmount
}

// AmountToFreeDelivery is how much more merchandise waives the fee. Nil when
// the zone has no threshold.
func AmountToFreeDelivery(zone *models.DeliveryZone, subtotal money.Subtotal) *money.Cents {
	if zone == nil || zone.FreeDeliveryThreshold == nil {
		return nil
	}
	remaining := money.Max(0, *zone.FreeDeliveryThreshold-subtotal.Cents())
	return &remaining
}

// AmountToMinimum is the shortfall against the zone's minimum order.
func AmountToMinimum(zone *models.DeliveryZone, subtotal money.Subtotal) money.Cents {
	if zone == nil {
		return 0
	}
	return money.Max(0, zone.MinOrderAmount-subtotal.Cents())
}

// FeeQuote bundles the four fee rules for one zone and subtotal.
type FeeQuote struct {
	Subtotal             money.Subtotal `json:"subtotal"`
	DeliveryFee          money.Cents    `json:"delivery_fee"`
	MeetsMinimum         bool           `json:"meets_minimum"`
	AmountToMinimum      money.Cents    `json:"amount_to_minimum"`
	AmountToFreeDelivery *money.Cents   `json:"amount_to_free_delivery"`
}

// QuoteFees evaluates every fee rule against the same subtotal.
func QuoteFees(zone *models.DeliveryZone, subtotal money.Subtotal) FeeQuote {
	return FeeQuote{
		Subtotal:             subtotal,
		DeliveryFee:          DeliveryFee(zone, subtotal),
		MeetsMinimum:         MeetsMinimum(zone, subtotal),
		AmountToMinimum:      AmountToMinimum(zone, subtotal),
		AmountToFreeDelivery: AmountToFreeDelivery(zone, subtotal),
	}
}

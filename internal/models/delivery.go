package models

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/example/crumb/internal/money"
)

// DateLayout is the calendar-date format used for slot and blackout dates.
const DateLayout = "2006-01-02"

// ZipCodeSet is the set of postal codes a zone serves. Stored as text[] on
// postgres and as the array literal text elsewhere.
type ZipCodeSet []string

// Value implements driver.Valuer.
func (z ZipCodeSet) Value() (driver.Value, error) {
	return pq.StringArray(z).Value()
}

// Scan implements sql.Scanner.
func (z *ZipCodeSet) Scan(src any) error {
	return (*pq.StringArray)(z).Scan(src)
}

// GormDataType is the generic type gorm uses when parsing the schema.
func (ZipCodeSet) GormDataType() string {
	return "text"
}

// GormDBDataType picks the column type per dialect.
func (ZipCodeSet) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Contains reports whether zip is in the set.
func (z ZipCodeSet) Contains(zip string) bool {
	for _, code := range z {
		if code == zip {
			return true
		}
	}
	return false
}

// DeliveryZone is a delivery-eligibility region with its own fee policy.
type DeliveryZone struct {
	BaseModel
	Name                  string       `gorm:"not null" json:"name"`
	SortOrder             int          `gorm:"index" json:"sort_order"`
	ZipCodes              ZipCodeSet   `json:"zip_codes"`
	DeliveryFee           money.Cents  `gorm:"not null" json:"delivery_fee"`
	FreeDeliveryThreshold *money.Cents `json:"free_delivery_threshold"`
	MinOrderAmount        money.Cents  `gorm:"not null" json:"min_order_amount"`
	EstimatedTimeMinutes  int          `json:"estimated_time_minutes"`
	IsActive              bool         `gorm:"index" json:"is_active"`
}

// SlotType says which fulfillment types a slot accepts.
type SlotType string

const (
	SlotPickup   SlotType = "pickup"
	SlotDelivery SlotType = "delivery"
	SlotBoth     SlotType = "both"
)

// Accepts reports whether a slot of this type can serve fulfillment type t.
func (s SlotType) Accepts(t FulfillmentType) bool {
	switch s {
	case SlotBoth:
		return t.Valid()
	case SlotPickup:
		return t == FulfillmentPickup
	case SlotDelivery:
		return t == FulfillmentDelivery
	}
	return false
}

// TimeSlot is a capacity-bounded window on one date. The window is [WindowStart, WindowEnd).
type TimeSlot struct {
	BaseModel
	Date          string   `gorm:"type:varchar(10);not null;index" json:"date"`
	WindowStart   string   `gorm:"type:varchar(5);not null" json:"window_start"`
	WindowEnd     string   `gorm:"type:varchar(5);not null" json:"window_end"`
	SlotType      SlotType `gorm:"type:varchar(16);not null" json:"slot_type"`
	MaxOrders     int      `gorm:"not null" json:"max_orders"`
	CurrentOrders int      `gorm:"not null" json:"current_orders"`
	IsAvailable   bool     `json:"is_available"`
}

// Remaining is the number of bookings the slot can still take.
func (s TimeSlot) Remaining() int {
	if s.CurrentOrders >= s.MaxOrders {
		return 0
	}
	return s.MaxOrders - s.CurrentOrders
}

// BlackoutDate is a date with no bookable slots of any type.
type BlackoutDate struct {
	BaseModel
	Date   string `gorm:"type:varchar(10);uniqueIndex;not null" json:"date"`
	Reason string `json:"reason"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel provides shared columns for all tables.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures UUIDs are generated for new records.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// FulfillmentType is how the customer receives the order.
type FulfillmentType string

const (
	FulfillmentPickup   FulfillmentType = "pickup"
	FulfillmentDelivery FulfillmentType = "delivery"
)

// Valid reports whether t is one of the known fulfillment types.
func (t FulfillmentType) Valid() bool {
	return t == FulfillmentPickup || t == FulfillmentDelivery
}

// All is the full list of models migrated at startup.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Product{},
		&ProductVariant{},
		&DeliveryZone{},
		&TimeSlot{},
		&BlackoutDate{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
	}
}

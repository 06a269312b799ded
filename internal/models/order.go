package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/money"
)

// OrderStatus is a state in the order lifecycle.
type OrderStatus string

const (
	StatusReceived       OrderStatus = "received"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusBaking         OrderStatus = "baking"
	StatusDecorating     OrderStatus = "decorating"
	StatusQualityCheck   OrderStatus = "quality_check"
	StatusReady          OrderStatus = "ready"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusPickedUp       OrderStatus = "picked_up"
	StatusCancelled      OrderStatus = "cancelled"
	StatusRefunded       OrderStatus = "refunded"
)

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusDelivered, StatusPickedUp, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Order is the authoritative, server-priced record of a checkout.
type Order struct {
	BaseModel
	UserID      *uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	OrderNumber string      `gorm:"uniqueIndex;not null" json:"order_number"`
	Status      OrderStatus `gorm:"type:varchar(32);index;not null" json:"status"`

	ContactEmail string `gorm:"not null" json:"contact_email"`
	ContactName  string `gorm:"not null" json:"contact_name"`
	ContactPhone string `gorm:"not null" json:"contact_phone"`

	FulfillmentType FulfillmentType `gorm:"type:varchar(16);not null" json:"fulfillment_type"`
	FulfillmentDate string          `gorm:"type:varchar(10)" json:"fulfillment_date"`
	DeliveryZoneID  *uuid.UUID      `gorm:"type:uuid;index" json:"delivery_zone_id"`
	TimeSlotID      *uuid.UUID      `gorm:"type:uuid;index" json:"time_slot_id"`

	DeliveryAddressLine string `json:"delivery_address_line"`
	DeliveryApartment   string `json:"delivery_apartment"`
	DeliveryCity        string `json:"delivery_city"`
	DeliveryState       string `json:"delivery_state"`
	DeliveryZip         string `json:"delivery_zip"`
	DeliveryNotes       string `json:"delivery_notes"`

	Subtotal       money.Cents `gorm:"not null" json:"subtotal"`
	DeliveryFee    money.Cents `gorm:"not null" json:"delivery_fee"`
	TaxAmount      money.Cents `gorm:"not null" json:"tax_amount"`
	DiscountAmount money.Cents `gorm:"not null" json:"discount_amount"`
	Tip            money.Cents `gorm:"not null" json:"tip"`
	Total          money.Cents `gorm:"not null" json:"total"`
	Currency       string      `gorm:"type:varchar(8)" json:"currency"`

	PaymentSessionID string `gorm:"index" json:"payment_session_id"`
	SpecialRequests  string `json:"special_requests"`

	ReceivedAt       time.Time  `json:"received_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at"`
	BakingAt         *time.Time `json:"baking_at"`
	DecoratingAt     *time.Time `json:"decorating_at"`
	QualityCheckAt   *time.Time `json:"quality_check_at"`
	ReadyAt          *time.Time `json:"ready_at"`
	OutForDeliveryAt *time.Time `json:"out_for_delivery_at"`
	DeliveredAt      *time.Time `json:"delivered_at"`
	PickedUpAt       *time.Time `json:"picked_up_at"`
	CancelledAt      *time.Time `json:"cancelled_at"`
	RefundedAt       *time.Time `json:"refunded_at"`

	Items   []OrderItem          `json:"items,omitempty"`
	History []OrderStatusHistory `json:"history,omitempty"`
}

// OrderItem snapshots the product and price at order time; it is not kept in
// sync with the catalog.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID   `gorm:"type:uuid;index;not null" json:"order_id"`
	ProductID   uuid.UUID   `gorm:"type:uuid" json:"product_id"`
	VariantID   uuid.UUID   `gorm:"type:uuid" json:"variant_id"`
	ProductName string      `gorm:"not null" json:"product_name"`
	VariantName string      `json:"variant_name"`
	UnitPrice   money.Cents `gorm:"not null" json:"unit_price"`
	Quantity    int         `gorm:"not null" json:"quantity"`
	LineTotal   money.Cents `gorm:"not null" json:"line_total"`
}

// OrderStatusHistory is an append-only record of one status change. Rows are
// never updated; Order.Status mirrors the latest entry.
type OrderStatusHistory struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID   `gorm:"type:uuid;index;not null" json:"order_id"`
	Status    OrderStatus `gorm:"type:varchar(32);not null" json:"status"`
	Actor     string      `gorm:"not null" json:"actor"`
	Note      string      `json:"note"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
}

// TableName overrides the pluralized default.
func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

// BeforeCreate assigns the history row id.
func (h *OrderStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

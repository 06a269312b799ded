package models

import (
	"github.com/google/uuid"

	"github.com/example/crumb/internal/money"
)

// Product is a catalog entry. Custom products are made to order and need the
// longer lead time.
type Product struct {
	BaseModel
	Slug        string           `gorm:"uniqueIndex" json:"slug"`
	Name        string           `gorm:"not null" json:"name"`
	Description string           `json:"description"`
	Category    string           `gorm:"index" json:"category"`
	ImageURL    string           `json:"image_url"`
	IsCustom    bool             `json:"is_custom"`
	IsActive    bool             `gorm:"index" json:"is_active"`
	Variants    []ProductVariant `json:"variants,omitempty"`
}

type ProductVariant struct {
	BaseModel
	ProductID   uuid.UUID   `gorm:"type:uuid;index" json:"product_id"`
	Product     *Product    `json:"product,omitempty"`
	Name        string      `json:"name"`
	SKU         string      `json:"sku"`
	Price       money.Cents `gorm:"not null" json:"price"`
	IsAvailable bool        `json:"is_available"`
}

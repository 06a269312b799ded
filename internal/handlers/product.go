package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/money"
	"github.com/example/crumb/internal/repository"
	"github.com/example/crumb/internal/utils"
)

// ProductHandler serves the catalog and its admin upkeep.
type ProductHandler struct {
	catalog *repository.CatalogRepository
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(catalog *repository.CatalogRepository) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// ListProducts returns paginated active products with their variants.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	products, total, err := h.catalog.ActiveProducts(c.UserContext(), strings.TrimSpace(c.Query("category")), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pg.Meta(total),
	})
}

// GetProduct loads a product with its variants.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	product, err := h.catalog.FindProduct(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

type variantRequest struct {
	Name        string      `json:"name"`
	SKU         string      `json:"sku"`
	Price       money.Cents `json:"price"`
	IsAvailable *bool       `json:"is_available"`
}

type productRequest struct {
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	ImageURL    string           `json:"image_url"`
	IsCustom    bool             `json:"is_custom"`
	IsActive    *bool            `json:"is_active"`
	Variants    []variantRequest `json:"variants"`
}

// CreateProduct adds a product with its variants.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Name) == "" || len(req.Variants) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "name and at least one variant are required")
	}

	product := models.Product{
		Slug:        strings.TrimSpace(req.Slug),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		ImageURL:    req.ImageURL,
		IsCustom:    req.IsCustom,
		IsActive:    boolOr(req.IsActive, true),
	}
	if product.Slug == "" {
		product.Slug = slugify(product.Name)
	}

	for _, v := range req.Variants {
		if v.Price <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "variant price must be positive")
		}
		product.Variants = append(product.Variants, models.ProductVariant{
			Name:        strings.TrimSpace(v.Name),
			SKU:         strings.TrimSpace(v.SKU),
			Price:       v.Price,
			IsAvailable: boolOr(v.IsAvailable, true),
		})
	}

	if err := h.catalog.CreateProduct(c.UserContext(), &product); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

type variantUpdateRequest struct {
	Price       *money.Cents `json:"price"`
	IsAvailable *bool        `json:"is_available"`
}

// UpdateVariant changes a variant's price or availability. Carts holding the
// old price are rejected at checkout.
func (h *ProductHandler) UpdateVariant(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req variantUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]any{}
	if req.Price != nil {
		if *req.Price <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "price must be positive")
		}
		updates["price"] = *req.Price
	}
	if req.IsAvailable != nil {
		updates["is_available"] = *req.IsAvailable
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	variant, err := h.catalog.UpdateVariant(c.UserContext(), id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "variant not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": variant})
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/models"
)

// CatalogRepository reads products and variants.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// VariantsByIDs loads the variants with their products. Missing ids are simply
// absent from the result.
func (r *CatalogRepository) VariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var variants []models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id IN ?", ids).
		Find(&variants).Error
	return variants, err
}

// ActiveProducts returns active products with their variants.
func (r *CatalogRepository) ActiveProducts(ctx context.Context, category string, limit, offset int) ([]models.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	err := query.
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("price asc")
		}).
		Order("name asc").
		Limit(limit).Offset(offset).
		Find(&products).Error
	return products, total, err
}

func (r *CatalogRepository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Preload("Variants").
		First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct writes the product and its variants together.
func (r *CatalogRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateVariant applies updates to one variant and returns it reloaded.
func (r *CatalogRepository) UpdateVariant(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.ProductVariant, error) {
	res := r.db.WithContext(ctx).Model(&models.ProductVariant{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

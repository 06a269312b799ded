package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/money"
)

func TestCatalogVariantsAndProducts(t *testing.T) {
	db := newTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	bread := &models.Product{
		Slug: "sourdough", Name: "Sourdough", Category: "bread", IsActive: true,
		Variants: []models.ProductVariant{
			{Name: "Large", Price: 949, IsAvailable: true},
			{Name: "Small", Price: 599, IsAvailable: true},
		},
	}
	cake := &models.Product{
		Slug: "wedding-cake", Name: "Wedding cake", Category: "cake", IsCustom: true, IsActive: true,
		Variants: []models.ProductVariant{{Name: "3 tier", Price: 25000, IsAvailable: true}},
	}
	retired := &models.Product{
		Slug: "rye", Name: "Rye", Category: "bread",
		Variants: []models.ProductVariant{{Name: "Loaf", Price: 700, IsAvailable: true}},
	}
	for _, p := range []*models.Product{bread, cake, retired} {
		require.NoError(t, repo.CreateProduct(ctx, p))
	}

	products, total, err := repo.ActiveProducts(ctx, "", 20, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, products, 2)
	assert.Equal(t, "Sourdough", products[0].Name)
	require.Len(t, products[0].Variants, 2)
	assert.Equal(t, money.Cents(599), products[0].Variants[0].Price, "variants cheapest first")

	_, total, err = repo.ActiveProducts(ctx, "cake", 20, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	variants, err := repo.VariantsByIDs(ctx, []uuid.UUID{cake.Variants[0].ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, variants, 1)
	require.NotNil(t, variants[0].Product)
	assert.True(t, variants[0].Product.IsCustom)

	none, err := repo.VariantsByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateVariant(t *testing.T) {
	db := newTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	p := &models.Product{
		Slug: "baguette", Name: "Baguette", IsActive: true,
		Variants: []models.ProductVariant{{Name: "Classic", Price: 450, IsAvailable: true}},
	}
	require.NoError(t, repo.CreateProduct(ctx, p))
	id := p.Variants[0].ID

	got, err := repo.UpdateVariant(ctx, id, map[string]any{"price": money.Cents(500), "is_available": false})
	require.NoError(t, err)
	assert.Equal(t, money.Cents(500), got.Price)
	assert.False(t, got.IsAvailable)

	_, err = repo.UpdateVariant(ctx, uuid.New(), map[string]any{"price": money.Cents(1)})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	product, err := repo.FindProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, product.Variants, 1)
}

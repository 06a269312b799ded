// Package repository maps the gorm tables to domain models. Business rules
// live in services; these types only read and write rows.
package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/models"
)

// ZoneRepository stores delivery zones.
type ZoneRepository struct {
	db *gorm.DB
}

func NewZoneRepository(db *gorm.DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

// ActiveZones returns every active zone ordered by sort order.
func (r *ZoneRepository) ActiveZones(ctx context.Context) ([]models.DeliveryZone, error) {
	var zones []models.DeliveryZone
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order asc, name asc").
		Find(&zones).Error
	return zones, err
}

// List returns all zones, active or not.
func (r *ZoneRepository) List(ctx context.Context) ([]models.DeliveryZone, error) {
	var zones []models.DeliveryZone
	err := r.db.WithContext(ctx).Order("sort_order asc, name asc").Find(&zones).Error
	return zones, err
}

func (r *ZoneRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error) {
	var zone models.DeliveryZone
	if err := r.db.WithContext(ctx).First(&zone, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *ZoneRepository) Create(ctx context.Context, zone *models.DeliveryZone) error {
	return r.db.WithContext(ctx).Create(zone).Error
}

func (r *ZoneRepository) Save(ctx context.Context, zone *models.DeliveryZone) error {
	return r.db.WithContext(ctx).Save(zone).Error
}

// Deactivate hides a zone from resolution. Zones stay on file because past
// orders reference them.
func (r *ZoneRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryZone{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// GormSupplierRepository implements SupplierRepository using GORM.
type GormSupplierRepository struct {
	db *gorm.DB
}

var _ interfaces.SupplierRepository = (*GormSupplierRepository)(nil)

// NewGormSupplierRepository creates a new GORM supplier repository.
func NewGormSupplierRepository(db *gorm.DB) *GormSupplierRepository {
	return &GormSupplierRepository{db: db}
}

func (r *GormSupplierRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	var supplier models.Supplier
	result := r.db.WithContext(ctx).First(&supplier, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("supplier not found", map[string]interface{}{
				"supplier_id": id.String(),
			})
		}
		return nil, models.NewDatabaseError("failed to load supplier", result.Error)
	}
	return &supplier, nil
}

func (r *GormSupplierRepository) GetByName(ctx context.Context, name string) (*models.Supplier, error) {
	var supplier models.Supplier
	result := r.db.WithContext(ctx).First(&supplier, "name = ?", name)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("supplier not found", map[string]interface{}{
				"name": name,
			})
		}
		return nil, models.NewDatabaseError("failed to load supplier", result.Error)
	}
	return &supplier, nil
}

func (r *GormSupplierRepository) ListActive(ctx context.Context) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	result := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name").
		Find(&suppliers)
	if result.Error != nil {
		return nil, models.NewDatabaseError("failed to list active suppliers", result.Error)
	}
	return suppliers, nil
}

func (r *GormSupplierRepository) Create(ctx context.Context, s *models.Supplier) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return models.NewDatabaseError("failed to create supplier", err)
	}
	return nil
}

func (r *GormSupplierRepository) Update(ctx context.Context, s *models.Supplier) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return models.NewDatabaseError("failed to update supplier", err)
	}
	return nil
}

// Deactivate soft-deactivates a supplier; suppliers are never deleted.
func (r *GormSupplierRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Supplier{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return models.NewDatabaseError("failed to deactivate supplier", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("supplier not found", map[string]interface{}{
			"supplier_id": id.String(),
		})
	}
	return nil
}

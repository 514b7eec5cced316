package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// GormProductRepository implements ProductRepository using GORM.
type GormProductRepository struct {
	db *gorm.DB
}

var _ interfaces.ProductRepository = (*GormProductRepository)(nil)

// NewGormProductRepository creates a new GORM product repository.
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	result := r.db.WithContext(ctx).First(&product, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("product not found", map[string]interface{}{
				"product_id": id.String(),
			})
		}
		return nil, models.NewDatabaseError("failed to load product", result.Error)
	}
	return &product, nil
}

func (r *GormProductRepository) Create(ctx context.Context, p *models.Product) error {
	// Unique violations bubble up untranslated so the caller can retry
	// with a fresh internal SKU.
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *GormProductRepository) Update(ctx context.Context, p *models.Product) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return models.NewDatabaseError("failed to update product", err)
	}
	return nil
}

// FindRefs returns (id, name) candidate pairs for the matcher, restricted
// to the given categories when non-empty. Archived products are never
// match candidates. Ordering by id keeps the window deterministic.
func (r *GormProductRepository) FindRefs(ctx context.Context, categoryIDs []uuid.UUID, limit int) ([]models.ProductRef, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("status <> ?", models.ProductArchived)
	if len(categoryIDs) > 0 {
		query = query.Where("category_id IN ?", categoryIDs)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var refs []models.ProductRef
	if err := query.Order("id").Scan(&refs).Error; err != nil {
		return nil, models.NewDatabaseError("failed to load product refs", err)
	}
	return refs, nil
}

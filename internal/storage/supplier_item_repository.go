package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// GormSupplierItemRepository implements SupplierItemRepository using GORM.
type GormSupplierItemRepository struct {
	db *gorm.DB
}

var _ interfaces.SupplierItemRepository = (*GormSupplierItemRepository)(nil)

// NewGormSupplierItemRepository creates a new GORM supplier item repository.
func NewGormSupplierItemRepository(db *gorm.DB) *GormSupplierItemRepository {
	return &GormSupplierItemRepository{db: db}
}

func (r *GormSupplierItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SupplierItem, error) {
	var item models.SupplierItem
	result := r.db.WithContext(ctx).First(&item, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("supplier item not found", map[string]interface{}{
				"supplier_item_id": id.String(),
			})
		}
		return nil, models.NewDatabaseError("failed to load supplier item", result.Error)
	}
	return &item, nil
}

// Upsert keys on (supplier_id, supplier_sku). A fresh row starts
// unmatched; an existing row keeps its identity, link, and match status —
// only the ingest-owned columns are rewritten, and only when they
// changed. last_ingested_at is always touched. Parsed characteristics
// merge into the existing map without clearing unrelated keys.
func (r *GormSupplierItemRepository) Upsert(ctx context.Context, item *models.SupplierItem) (interfaces.UpsertResult, error) {
	var outcome interfaces.UpsertResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.SupplierItem
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("supplier_id = ? AND supplier_sku = ?", item.SupplierID, item.SupplierSKU).
			First(&existing).Error

		if err == gorm.ErrRecordNotFound {
			item.MatchStatus = models.MatchUnmatched
			item.LastIngestedAt = time.Now().UTC()
			if createErr := tx.Create(item).Error; createErr != nil {
				return models.NewDatabaseError("failed to insert supplier item", createErr)
			}
			outcome = interfaces.UpsertInserted
			return nil
		}
		if err != nil {
			return models.NewDatabaseError("failed to look up supplier item", err)
		}

		changed := existing.Name != item.Name ||
			!existing.CurrentPrice.Equal(item.CurrentPrice) ||
			!nullDecimalEqual(existing.PriceOpt, item.PriceOpt) ||
			!nullDecimalEqual(existing.PriceRRC, item.PriceRRC) ||
			existing.InStock != item.InStock

		existing.Name = item.Name
		existing.CurrentPrice = item.CurrentPrice
		existing.PriceOpt = item.PriceOpt
		existing.PriceRRC = item.PriceRRC
		existing.InStock = item.InStock
		existing.LastIngestedAt = time.Now().UTC()

		if len(item.Characteristics) > 0 {
			if existing.Characteristics == nil {
				existing.Characteristics = models.JSONMap{}
			}
			for k, v := range item.Characteristics {
				if existing.Characteristics[k] != v {
					changed = true
				}
				existing.Characteristics[k] = v
			}
		}

		if saveErr := tx.Save(&existing).Error; saveErr != nil {
			return models.NewDatabaseError("failed to update supplier item", saveErr)
		}

		*item = existing
		if changed {
			outcome = interfaces.UpsertUpdated
		} else {
			outcome = interfaces.UpsertUnchanged
		}
		return nil
	})
	return outcome, err
}

func (r *GormSupplierItemRepository) Update(ctx context.Context, item *models.SupplierItem) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return models.NewDatabaseError("failed to update supplier item", err)
	}
	return nil
}

// ClaimUnmatched selects up to limit unmatched items with row-skip
// locking, so concurrent matching workers never observe the same row.
// Must run inside the caller's transaction for the locks to hold.
func (r *GormSupplierItemRepository) ClaimUnmatched(tx *gorm.DB, supplierID *uuid.UUID, limit int) ([]models.SupplierItem, error) {
	query := tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("product_id IS NULL AND match_status = ?", models.MatchUnmatched)
	if supplierID != nil {
		query = query.Where("supplier_id = ?", *supplierID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var items []models.SupplierItem
	if err := query.Order("created_at").Find(&items).Error; err != nil {
		return nil, models.NewDatabaseError("failed to claim unmatched items", err)
	}
	return items, nil
}

// LinkedActive returns items linked to the product whose supplier is
// still active, the input set for aggregate recomputation.
func (r *GormSupplierItemRepository) LinkedActive(tx *gorm.DB, productID uuid.UUID) ([]models.SupplierItem, error) {
	var items []models.SupplierItem
	err := tx.
		Joins("JOIN suppliers ON suppliers.id = supplier_items.supplier_id").
		Where("supplier_items.product_id = ? AND suppliers.is_active = ?", productID, true).
		Find(&items).Error
	if err != nil {
		return nil, models.NewDatabaseError("failed to load linked items", err)
	}
	return items, nil
}

// MergeCharacteristics folds delta into the item's characteristics map
// without clearing unrelated keys. Extractors own disjoint keys, so
// re-running the same extraction is a no-op.
func (r *GormSupplierItemRepository) MergeCharacteristics(ctx context.Context, id uuid.UUID, delta map[string]interface{}) error {
	if len(delta) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.SupplierItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return models.NewNotFoundError("supplier item not found", map[string]interface{}{
					"supplier_item_id": id.String(),
				})
			}
			return models.NewDatabaseError("failed to lock supplier item", err)
		}

		if item.Characteristics == nil {
			item.Characteristics = models.JSONMap{}
		}
		for k, v := range delta {
			item.Characteristics[k] = v
		}
		if err := tx.Save(&item).Error; err != nil {
			return models.NewDatabaseError("failed to merge characteristics", err)
		}
		return nil
	})
}

func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return a.Decimal.Equal(b.Decimal)
}

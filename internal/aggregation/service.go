package aggregation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// Service recomputes product-level aggregates from linked supplier items.
// min_price and availability are written here and nowhere else.
type Service struct {
	db     *gorm.DB
	items  interfaces.SupplierItemRepository
	logger arbor.ILogger
}

// NewService wires the aggregation engine.
func NewService(db *gorm.DB, items interfaces.SupplierItemRepository, logger arbor.ILogger) *Service {
	return &Service{db: db, items: items, logger: logger}
}

// Recompute rebuilds one product's aggregates in a single transaction:
// min_price becomes the smallest current_price over items linked through
// an active supplier (null when none), availability becomes true iff any
// such item signals stock.
func (s *Service) Recompute(ctx context.Context, productID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&product, "id = ?", productID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return models.NewNotFoundError("product not found", map[string]interface{}{
					"product_id": productID.String(),
				})
			}
			return models.NewDatabaseError("failed to lock product", err)
		}

		items, err := s.items.LinkedActive(tx, productID)
		if err != nil {
			return models.NewDatabaseError("failed to load linked items", err)
		}

		var minPrice decimal.NullDecimal
		availability := false
		for i := range items {
			price := items[i].CurrentPrice
			if !minPrice.Valid || price.LessThan(minPrice.Decimal) {
				minPrice = decimal.NewNullDecimal(price)
			}
			if items[i].InStock {
				availability = true
			}
		}

		product.MinPrice = minPrice
		product.Availability = availability

		if err := tx.Save(&product).Error; err != nil {
			return models.NewDatabaseError("failed to save product aggregates", err)
		}

		s.logger.Debug().
			Str("product_id", productID.String()).
			Int("linked_items", len(items)).
			Bool("availability", availability).
			Msg("Product aggregates recomputed")
		return nil
	})
}

// RecomputeBatch processes each product independently; a failure on one
// is logged and does not abort the rest. Returns how many failed.
func (s *Service) RecomputeBatch(ctx context.Context, productIDs []uuid.UUID) int {
	failed := 0
	for _, productID := range productIDs {
		if err := s.Recompute(ctx, productID); err != nil {
			failed++
			s.logger.Warn().
				Err(err).
				Str("product_id", productID.String()).
				Msg("Aggregate recompute failed")
		}
	}
	return failed
}

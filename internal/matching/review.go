package matching

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// ReviewService resolves pending review rows via operator actions and the
// TTL expiry sweep.
type ReviewService struct {
	db        *gorm.DB
	reviews   interfaces.ReviewRepository
	queue     interfaces.TaskQueue
	skuPrefix string
	logger    arbor.ILogger
}

// NewReviewService wires the review lifecycle.
func NewReviewService(db *gorm.DB, reviews interfaces.ReviewRepository, queue interfaces.TaskQueue, skuPrefix string, logger arbor.ILogger) *ReviewService {
	return &ReviewService{
		db:        db,
		reviews:   reviews,
		queue:     queue,
		skuPrefix: skuPrefix,
		logger:    logger,
	}
}

// List returns review rows matching the filter.
func (s *ReviewService) List(ctx context.Context, filter models.ReviewFilter) ([]models.MatchReviewQueue, error) {
	filter.Normalize()
	return s.reviews.List(ctx, filter)
}

// Apply resolves one pending review row. Approve links the item to the
// chosen product; reject and create_new both run the create-new-product
// policy, reject using the item's own name. Recalc tasks fire only after
// the transaction commits.
func (s *ReviewService) Apply(ctx context.Context, reviewID uuid.UUID, action models.ReviewAction) (*models.MatchReviewQueue, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}

	recalc := make(map[uuid.UUID]struct{})
	var row models.MatchReviewQueue

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "id = ?", reviewID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return models.NewNotFoundError("review not found", map[string]interface{}{
					"review_id": reviewID.String(),
				})
			}
			return models.NewDatabaseError("failed to load review", err)
		}
		if row.Status != models.ReviewPending {
			return models.NewValidationError("review is not pending", map[string]interface{}{
				"review_id": reviewID.String(),
				"status":    string(row.Status),
			})
		}

		var item models.SupplierItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, "id = ?", row.SupplierItemID).Error; err != nil {
			return models.NewDatabaseError("failed to load supplier item", err)
		}

		// Relinking a previously linked item means the old product's
		// aggregates are stale too.
		if item.ProductID != nil {
			recalc[*item.ProductID] = struct{}{}
		}

		switch action.Action {
		case "approve":
			if err := s.approveInto(tx, &item, *action.ProductID); err != nil {
				return err
			}
			recalc[*action.ProductID] = struct{}{}
			row.Status = models.ReviewApproved

		case "reject":
			productID, err := s.createAndLink(tx, &item, item.Name)
			if err != nil {
				return err
			}
			recalc[productID] = struct{}{}
			row.Status = models.ReviewRejected

		case "create_new":
			productID, err := s.createAndLink(tx, &item, action.NewProductName)
			if err != nil {
				return err
			}
			recalc[productID] = struct{}{}
			row.Status = models.ReviewRejected
		}

		now := time.Now().UTC()
		row.ReviewedAt = &now
		if action.ReviewedBy != "" {
			row.ReviewedBy = &action.ReviewedBy
		}
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, err
	}

	for productID := range recalc {
		if err := EnqueueRecalc(ctx, s.queue, productID); err != nil {
			s.logger.Warn().
				Err(err).
				Str("product_id", productID.String()).
				Msg("Failed to enqueue recalc after review action")
		}
	}
	return &row, nil
}

func (s *ReviewService) approveInto(tx *gorm.DB, item *models.SupplierItem, productID uuid.UUID) error {
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

	if product.Status == models.ProductDraft {
		product.Status = models.ProductActive
		if err := tx.Save(&product).Error; err != nil {
			return err
		}
	}

	item.ProductID = &productID
	item.MatchStatus = models.MatchMatched
	return tx.Save(item).Error
}

func (s *ReviewService) createAndLink(tx *gorm.DB, item *models.SupplierItem, name string) (uuid.UUID, error) {
	productID, err := createProduct(tx, name, item.CategoryID, s.skuPrefix)
	if err != nil {
		return uuid.Nil, err
	}
	item.ProductID = &productID
	item.MatchStatus = models.MatchMatched
	return productID, tx.Save(item).Error
}

// ExpireDue marks pending reviews past their TTL as expired and reverts
// the corresponding items to unmatched so the next matching pass can
// reconsider them. Returns how many reviews expired.
func (s *ReviewService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	itemIDs, err := s.reviews.ExpireDue(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(itemIDs) == 0 {
		return 0, nil
	}

	err = s.db.WithContext(ctx).
		Model(&models.SupplierItem{}).
		Where("id IN ? AND match_status = ?", itemIDs, models.MatchPotential).
		Update("match_status", models.MatchUnmatched).Error
	if err != nil {
		return 0, models.NewDatabaseError("failed to revert expired items", err)
	}

	s.logger.Info().
		Int("expired", len(itemIDs)).
		Msg("Expired stale review rows")
	return len(itemIDs), nil
}

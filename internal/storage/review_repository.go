package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// GormReviewRepository implements ReviewRepository using GORM.
type GormReviewRepository struct {
	db *gorm.DB
}

var _ interfaces.ReviewRepository = (*GormReviewRepository)(nil)

// NewGormReviewRepository creates a new GORM review repository.
func NewGormReviewRepository(db *gorm.DB) *GormReviewRepository {
	return &GormReviewRepository{db: db}
}

func (r *GormReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MatchReviewQueue, error) {
	var row models.MatchReviewQueue
	result := r.db.WithContext(ctx).First(&row, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("review not found", map[string]interface{}{
				"review_id": id.String(),
			})
		}
		return nil, models.NewDatabaseError("failed to load review", result.Error)
	}
	return &row, nil
}

// UpsertPending creates or refreshes the single row for a supplier item.
// A re-match of an item already in review replaces its candidates and
// restarts the TTL rather than stacking rows.
func (r *GormReviewRepository) UpsertPending(tx *gorm.DB, row *models.MatchReviewQueue) error {
	var existing models.MatchReviewQueue
	err := tx.Where("supplier_item_id = ?", row.SupplierItemID).First(&existing).Error

	if err == gorm.ErrRecordNotFound {
		if createErr := tx.Create(row).Error; createErr != nil {
			return models.NewDatabaseError("failed to create review row", createErr)
		}
		return nil
	}
	if err != nil {
		return models.NewDatabaseError("failed to look up review row", err)
	}

	existing.CandidateProducts = row.CandidateProducts
	existing.BestScore = row.BestScore
	existing.Status = models.ReviewPending
	existing.ReviewedBy = nil
	existing.ReviewedAt = nil
	existing.ExpiresAt = row.ExpiresAt
	if saveErr := tx.Save(&existing).Error; saveErr != nil {
		return models.NewDatabaseError("failed to refresh review row", saveErr)
	}

	*row = existing
	return nil
}

func (r *GormReviewRepository) Update(ctx context.Context, row *models.MatchReviewQueue) error {
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return models.NewDatabaseError("failed to update review", err)
	}
	return nil
}

func (r *GormReviewRepository) DeleteForItem(tx *gorm.DB, supplierItemID uuid.UUID) error {
	err := tx.Where("supplier_item_id = ?", supplierItemID).
		Delete(&models.MatchReviewQueue{}).Error
	if err != nil {
		return models.NewDatabaseError("failed to delete review row", err)
	}
	return nil
}

// List applies the review-queue filters. Supplier and category filters go
// through the supplier item the review points at.
func (r *GormReviewRepository) List(ctx context.Context, filter models.ReviewFilter) ([]models.MatchReviewQueue, error) {
	filter.Normalize()

	query := r.db.WithContext(ctx).Model(&models.MatchReviewQueue{})

	if filter.Status != "" {
		query = query.Where("match_review_queue.status = ?", filter.Status)
	}
	if filter.SupplierID != nil || filter.CategoryID != nil {
		query = query.Joins("JOIN supplier_items ON supplier_items.id = match_review_queue.supplier_item_id")
		if filter.SupplierID != nil {
			query = query.Where("supplier_items.supplier_id = ?", *filter.SupplierID)
		}
		if filter.CategoryID != nil {
			query = query.Where("supplier_items.category_id = ?", *filter.CategoryID)
		}
	}
	if filter.MinScore != nil {
		query = query.Where("match_review_queue.best_score >= ?", *filter.MinScore)
	}
	if filter.MaxScore != nil {
		query = query.Where("match_review_queue.best_score <= ?", *filter.MaxScore)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("match_review_queue.created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("match_review_queue.created_at < ?", *filter.CreatedBefore)
	}

	var rows []models.MatchReviewQueue
	err := query.
		Order("match_review_queue.created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, models.NewDatabaseError("failed to list reviews", err)
	}
	return rows, nil
}

// ExpireDue marks pending rows past their TTL as expired and returns the
// affected supplier item ids so the caller can revert the items.
func (r *GormReviewRepository) ExpireDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var itemIDs []uuid.UUID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []models.MatchReviewQueue
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND expires_at <= ?", models.ReviewPending, now).
			Find(&due).Error; err != nil {
			return models.NewDatabaseError("failed to scan due reviews", err)
		}
		if len(due) == 0 {
			return nil
		}

		reviewIDs := make([]uuid.UUID, 0, len(due))
		for _, row := range due {
			reviewIDs = append(reviewIDs, row.ID)
			itemIDs = append(itemIDs, row.SupplierItemID)
		}

		err := tx.Model(&models.MatchReviewQueue{}).
			Where("id IN ?", reviewIDs).
			Update("status", models.ReviewExpired).Error
		if err != nil {
			return models.NewDatabaseError("failed to expire reviews", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return itemIDs, nil
}

package matching

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skuforge/skuforge/internal/common"
	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// How many fresh SKUs to try before giving up on a unique collision.
const maxSKUAttempts = 5

// Options tune one matching pass.
type Options struct {
	BatchSize       int
	CandidateWindow int
	ReviewTTL       time.Duration
	SKUPrefix       string
}

// BatchSummary reports what one matching pass did.
type BatchSummary struct {
	Claimed       int `json:"claimed"`
	Matched       int `json:"matched"`
	Potential     int `json:"potential"`
	Created       int `json:"created"`
	NeedsCategory int `json:"needs_category"`
	Failed        int `json:"failed"`
}

// Service runs the per-item matching state machine over claimed batches
// of unmatched supplier items.
type Service struct {
	db         *gorm.DB
	items      interfaces.SupplierItemRepository
	products   interfaces.ProductRepository
	categories interfaces.CategoryRepository
	reviews    interfaces.ReviewRepository
	queue      interfaces.TaskQueue
	matcher    *Matcher
	opts       Options
	logger     arbor.ILogger
}

// NewService wires the matching pipeline.
func NewService(
	db *gorm.DB,
	items interfaces.SupplierItemRepository,
	products interfaces.ProductRepository,
	categories interfaces.CategoryRepository,
	reviews interfaces.ReviewRepository,
	queue interfaces.TaskQueue,
	matcher *Matcher,
	opts Options,
	logger arbor.ILogger,
) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.CandidateWindow <= 0 {
		opts.CandidateWindow = 1000
	}
	if opts.ReviewTTL <= 0 {
		opts.ReviewTTL = 30 * 24 * time.Hour
	}
	return &Service{
		db:         db,
		items:      items,
		products:   products,
		categories: categories,
		reviews:    reviews,
		queue:      queue,
		matcher:    matcher,
		opts:       opts,
		logger:     logger,
	}
}

// ProcessBatch claims a batch of unmatched items and runs the state
// machine on each. A failure on one item rolls back that item only; the
// item returns to unmatched for a later pass. Recalc tasks are enqueued
// after the batch commits so they only fire for durable links.
func (s *Service) ProcessBatch(ctx context.Context, supplierID *uuid.UUID) (*BatchSummary, error) {
	summary := &BatchSummary{}
	recalc := make(map[uuid.UUID]struct{})

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := s.items.ClaimUnmatched(tx, supplierID, s.opts.BatchSize)
		if err != nil {
			return models.NewDatabaseError("failed to claim unmatched items", err)
		}
		summary.Claimed = len(items)

		for i := range items {
			item := &items[i]
			// Nested transaction = savepoint: one bad item never takes the
			// batch down with it.
			itemErr := tx.Transaction(func(itemTx *gorm.DB) error {
				return s.processItem(ctx, itemTx, item, recalc, summary)
			})
			if itemErr != nil {
				summary.Failed++
				s.logger.Warn().
					Err(itemErr).
					Str("supplier_item_id", item.ID.String()).
					Str("supplier_sku", item.SupplierSKU).
					Msg("Matching failed for item, leaving unmatched")
			}
		}
		return nil
	})
	if err != nil {
		return summary, err
	}

	s.enqueueRecalcs(ctx, recalc)
	return summary, nil
}

func (s *Service) processItem(ctx context.Context, tx *gorm.DB, item *models.SupplierItem, recalc map[uuid.UUID]struct{}, summary *BatchSummary) error {
	if item.CategoryID == nil {
		item.MatchStatus = models.MatchNeedsCategory
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		summary.NeedsCategory++
		return nil
	}

	subtree, err := s.categories.SubtreeIDs(ctx, *item.CategoryID)
	if err != nil {
		return models.NewDatabaseError("failed to resolve category subtree", err)
	}
	candidates, err := s.products.FindRefs(ctx, subtree, s.opts.CandidateWindow)
	if err != nil {
		return models.NewDatabaseError("failed to load candidate products", err)
	}

	result := s.matcher.Match(item.Name, candidates)

	switch result.Status {
	case models.DecisionMatched:
		if err := s.linkItem(tx, item, result.Candidates[0].ProductID); err != nil {
			return err
		}
		recalc[result.Candidates[0].ProductID] = struct{}{}
		summary.Matched++

	case models.DecisionPotential:
		row := &models.MatchReviewQueue{
			SupplierItemID:    item.ID,
			CandidateProducts: result.Candidates,
			BestScore:         result.BestScore,
			Status:            models.ReviewPending,
			ExpiresAt:         time.Now().UTC().Add(s.opts.ReviewTTL),
		}
		if err := s.reviews.UpsertPending(tx, row); err != nil {
			return err
		}
		item.MatchStatus = models.MatchPotential
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		summary.Potential++

	case models.DecisionNoMatch:
		productID, err := createProduct(tx, item.Name, item.CategoryID, s.opts.SKUPrefix)
		if err != nil {
			return err
		}
		item.ProductID = &productID
		item.MatchStatus = models.MatchMatched
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		recalc[productID] = struct{}{}
		summary.Created++
	}
	return nil
}

// linkItem links an item to an existing product, flipping the product
// from draft to active on its first link.
func (s *Service) linkItem(tx *gorm.DB, item *models.SupplierItem, productID uuid.UUID) error {
	var product models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", productID).Error; err != nil {
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

// createProduct applies the create-new policy: a fresh active product
// named after the item, with a collision-retried internal SKU.
func createProduct(tx *gorm.DB, name string, categoryID *uuid.UUID, skuPrefix string) (uuid.UUID, error) {
	var lastErr error
	for attempt := 0; attempt < maxSKUAttempts; attempt++ {
		product := models.Product{
			InternalSKU: common.NewInternalSKU(skuPrefix),
			Name:        name,
			CategoryID:  categoryID,
			Status:      models.ProductActive,
		}
		err := tx.Create(&product).Error
		if err == nil {
			return product.ID, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return uuid.Nil, models.NewDatabaseError("failed to create product", err)
		}
		lastErr = err
	}
	return uuid.Nil, models.NewDatabaseError("internal sku collisions exhausted retries", lastErr)
}

func (s *Service) enqueueRecalcs(ctx context.Context, recalc map[uuid.UUID]struct{}) {
	for productID := range recalc {
		if err := EnqueueRecalc(ctx, s.queue, productID); err != nil {
			s.logger.Warn().
				Err(err).
				Str("product_id", productID.String()).
				Msg("Failed to enqueue recalc task")
		}
	}
}

// EnqueueRecalc enqueues an aggregate recompute keyed on the product id.
// A duplicate pending task means a recompute is already queued, which is
// exactly the coalescing we want.
func EnqueueRecalc(ctx context.Context, queue interfaces.TaskQueue, productID uuid.UUID) error {
	payload := models.RecalcPayload{ProductID: productID}
	msg, err := models.NewTaskMessageWithID(models.RecalcTaskID(productID), models.TaskKindRecalc, payload)
	if err != nil {
		return err
	}
	if err := queue.Enqueue(ctx, msg); err != nil && !errors.Is(err, models.ErrDuplicateTask) {
		return err
	}
	return nil
}

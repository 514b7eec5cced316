package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skuforge/skuforge/internal/models"
)

// SupplierRepository manages the supplier registry.
type SupplierRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
	GetByName(ctx context.Context, name string) (*models.Supplier, error)
	ListActive(ctx context.Context) ([]models.Supplier, error)
	Create(ctx context.Context, s *models.Supplier) error
	Update(ctx context.Context, s *models.Supplier) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// CategoryRepository manages the category tree. Category assignment
// itself happens outside the pipeline: the external classification
// service writes category_id onto supplier items, and items without one
// park as needs_category until it does. GetOrCreate and IsAncestor are
// the write-side contract that classifier integration calls.
type CategoryRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	// GetOrCreate resolves a (name, parent) node for the classifier,
	// inserting it flagged for review when missing.
	GetOrCreate(ctx context.Context, name string, parentID *uuid.UUID, supplierID *uuid.UUID) (*models.Category, error)
	// SubtreeIDs returns the category id plus all descendant ids.
	SubtreeIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	// IsAncestor reports whether ancestor appears on candidate's parent
	// chain, which is how classifier writes are checked for cycles before
	// re-parenting a node.
	IsAncestor(ctx context.Context, ancestor, candidate uuid.UUID) (bool, error)
}

// ProductRepository manages canonical catalog products.
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	// FindRefs returns (id, name) pairs for matching, restricted to the
	// given category ids when non-empty, capped at limit.
	FindRefs(ctx context.Context, categoryIDs []uuid.UUID, limit int) ([]models.ProductRef, error)
}

// UpsertResult reports what an ingest upsert did to one row.
type UpsertResult int

const (
	UpsertInserted UpsertResult = iota
	UpsertUpdated
	UpsertUnchanged
)

// SupplierItemRepository manages raw supplier rows.
type SupplierItemRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SupplierItem, error)
	// Upsert keys on (supplier_id, supplier_sku). last_ingested_at is always
	// touched; other columns are rewritten only when changed.
	Upsert(ctx context.Context, item *models.SupplierItem) (UpsertResult, error)
	Update(ctx context.Context, item *models.SupplierItem) error
	// ClaimUnmatched selects up to limit unmatched items with row-skip
	// locking inside tx, so concurrent workers never observe the same row.
	ClaimUnmatched(tx *gorm.DB, supplierID *uuid.UUID, limit int) ([]models.SupplierItem, error)
	// LinkedActive returns items linked to the product whose supplier is
	// active, for aggregate recomputation.
	LinkedActive(tx *gorm.DB, productID uuid.UUID) ([]models.SupplierItem, error)
	MergeCharacteristics(ctx context.Context, id uuid.UUID, delta map[string]interface{}) error
}

// ReviewRepository manages the match review queue.
type ReviewRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.MatchReviewQueue, error)
	// UpsertPending creates or refreshes the single pending row for an item.
	UpsertPending(tx *gorm.DB, row *models.MatchReviewQueue) error
	Update(ctx context.Context, row *models.MatchReviewQueue) error
	DeleteForItem(tx *gorm.DB, supplierItemID uuid.UUID) error
	List(ctx context.Context, filter models.ReviewFilter) ([]models.MatchReviewQueue, error)
	// ExpireDue marks pending rows past their TTL as expired and returns
	// the affected supplier item ids.
	ExpireDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// ParsingLogRepository appends diagnostic rows.
type ParsingLogRepository interface {
	Append(ctx context.Context, entry *models.ParsingLog) error
	ListByTask(ctx context.Context, taskID string) ([]models.ParsingLog, error)
}

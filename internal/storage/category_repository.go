package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// GormCategoryRepository implements CategoryRepository using GORM.
type GormCategoryRepository struct {
	db *gorm.DB
}

var _ interfaces.CategoryRepository = (*GormCategoryRepository)(nil)

// NewGormCategoryRepository creates a new GORM category repository.
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

func (r *GormCategoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	result := r.db.WithContext(ctx).First(&category, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("category not found", map[string]interface{}{
				"category_id": id.String(),
			})
		}
		return nil, models.NewDatabaseError("failed to load category", result.Error)
	}
	return &category, nil
}

// GetOrCreate finds the category by (name, parent_id) or inserts it. New
// categories inherit the originating supplier and are flagged for review.
// This is the entry point the external classification service uses when
// it encounters a supplier category with no canonical node yet; the
// pipeline itself never invents categories. Acyclicity is enforced here:
// inserting under a parent requires the parent chain to terminate, which
// it does since the parent already exists.
func (r *GormCategoryRepository) GetOrCreate(ctx context.Context, name string, parentID *uuid.UUID, supplierID *uuid.UUID) (*models.Category, error) {
	var category models.Category

	query := r.db.WithContext(ctx).Where("name = ?", name)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}

	err := query.First(&category).Error
	if err == nil {
		return &category, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, models.NewDatabaseError("failed to look up category", err)
	}

	category = models.Category{
		Name:        name,
		ParentID:    parentID,
		NeedsReview: true,
		IsActive:    true,
		SupplierID:  supplierID,
	}
	if err := r.db.WithContext(ctx).Create(&category).Error; err != nil {
		// Lost a race with a concurrent insert of the same (name, parent).
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if retryErr := query.First(&category).Error; retryErr == nil {
				return &category, nil
			}
		}
		return nil, models.NewDatabaseError("failed to create category", err)
	}
	return &category, nil
}

// SubtreeIDs returns the category id plus all descendant ids via a
// breadth-first walk. The tree is acyclic by construction, but the
// visited set guards against a corrupted hierarchy looping forever.
func (r *GormCategoryRepository) SubtreeIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	visited := map[uuid.UUID]bool{id: true}
	ids := []uuid.UUID{id}
	frontier := []uuid.UUID{id}

	for len(frontier) > 0 {
		var children []models.Category
		if err := r.db.WithContext(ctx).
			Select("id").
			Where("parent_id IN ?", frontier).
			Find(&children).Error; err != nil {
			return nil, models.NewDatabaseError("failed to walk category subtree", err)
		}

		frontier = frontier[:0]
		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			ids = append(ids, child.ID)
			frontier = append(frontier, child.ID)
		}
	}
	return ids, nil
}

// IsAncestor walks candidate's parent chain looking for ancestor. The
// classification service calls this before re-parenting a node so a move
// can never introduce a cycle (a node cannot adopt its own descendant).
func (r *GormCategoryRepository) IsAncestor(ctx context.Context, ancestor, candidate uuid.UUID) (bool, error) {
	visited := make(map[uuid.UUID]bool)
	current := candidate

	for {
		if visited[current] {
			return false, models.NewDatabaseError("category parent chain contains a cycle", nil)
		}
		visited[current] = true

		var category models.Category
		if err := r.db.WithContext(ctx).
			Select("id", "parent_id").
			First(&category, "id = ?", current).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return false, nil
			}
			return false, models.NewDatabaseError("failed to walk parent chain", err)
		}
		if category.ParentID == nil {
			return false, nil
		}
		if *category.ParentID == ancestor {
			return true, nil
		}
		current = *category.ParentID
	}
}

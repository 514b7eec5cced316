package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuforge/skuforge/internal/models"
)

func TestCategoryGetOrCreate(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormCategoryRepository(db)
	supplier := createTestSupplier(t, db, "acme", true)
	ctx := context.Background()

	created, err := repo.GetOrCreate(ctx, "Tools", nil, &supplier.ID)
	require.NoError(t, err)
	assert.True(t, created.NeedsReview, "new categories are flagged for review")
	assert.Equal(t, supplier.ID, *created.SupplierID)

	// Same (name, parent) resolves to the same row.
	again, err := repo.GetOrCreate(ctx, "Tools", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	// Same name under a different parent is a different category.
	child, err := repo.GetOrCreate(ctx, "Tools", &created.ID, nil)
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, child.ID)
	assert.Equal(t, created.ID, *child.ParentID)
}

func TestCategorySelfParentRejected(t *testing.T) {
	db := openTestDB(t)

	id := uuid.New()
	category := &models.Category{ID: id, Name: "Loop", ParentID: &id}
	err := db.Create(category).Error
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))
}

func TestCategorySubtreeIDs(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormCategoryRepository(db)
	ctx := context.Background()

	root := createTestCategory(t, db, "Electronics", nil)
	laptops := createTestCategory(t, db, "Laptops", &root.ID)
	gaming := createTestCategory(t, db, "Gaming Laptops", &laptops.ID)
	createTestCategory(t, db, "Furniture", nil) // unrelated tree

	ids, err := repo.SubtreeIDs(ctx, root.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{root.ID, laptops.ID, gaming.ID}, ids)

	// A leaf's subtree is itself.
	ids, err = repo.SubtreeIDs(ctx, gaming.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{gaming.ID}, ids)
}

func TestCategoryIsAncestor(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormCategoryRepository(db)
	ctx := context.Background()

	root := createTestCategory(t, db, "Electronics", nil)
	laptops := createTestCategory(t, db, "Laptops", &root.ID)
	gaming := createTestCategory(t, db, "Gaming Laptops", &laptops.ID)
	other := createTestCategory(t, db, "Furniture", nil)

	ok, err := repo.IsAncestor(ctx, root.ID, gaming.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsAncestor(ctx, gaming.ID, root.ID)
	require.NoError(t, err)
	assert.False(t, ok, "ancestry is directional")

	ok, err = repo.IsAncestor(ctx, other.ID, gaming.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

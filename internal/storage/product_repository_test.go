package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/skuforge/skuforge/internal/models"
)

func createTestProduct(t *testing.T, repo *GormProductRepository, sku, name string, categoryID *uuid.UUID, status models.ProductStatus) *models.Product {
	t.Helper()
	p := &models.Product{
		InternalSKU: sku,
		Name:        name,
		CategoryID:  categoryID,
		Status:      status,
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestProductCreateDuplicateSKU(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	createTestProduct(t, repo, "SKU-AAAA00000001", "Widget", nil, models.ProductActive)

	// Create surfaces the translated duplicate error so callers can retry
	// with a fresh SKU.
	dup := &models.Product{InternalSKU: "SKU-AAAA00000001", Name: "Other"}
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestProductFindRefs(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	electronics := createTestCategory(t, db, "Electronics", nil)
	furniture := createTestCategory(t, db, "Furniture", nil)

	inCat := createTestProduct(t, repo, "SKU-000000000001", "Dell XPS 13", &electronics.ID, models.ProductActive)
	draft := createTestProduct(t, repo, "SKU-000000000002", "Dell XPS 15", &electronics.ID, models.ProductDraft)
	createTestProduct(t, repo, "SKU-000000000003", "Oak Desk", &furniture.ID, models.ProductActive)
	createTestProduct(t, repo, "SKU-000000000004", "Old Laptop", &electronics.ID, models.ProductArchived)

	refs, err := repo.FindRefs(ctx, []uuid.UUID{electronics.ID}, 100)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	// Draft products are candidates; archived never are.
	assert.ElementsMatch(t, []uuid.UUID{inCat.ID, draft.ID}, ids)

	// Empty category set means no restriction.
	refs, err = repo.FindRefs(ctx, nil, 100)
	require.NoError(t, err)
	assert.Len(t, refs, 3)

	// The window cap holds.
	refs, err = repo.FindRefs(ctx, nil, 2)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestProductInvalidCurrencyRejected(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormProductRepository(db)

	bad := "usd"
	p := &models.Product{InternalSKU: "SKU-000000000009", Name: "Widget", CurrencyCode: &bad}
	err := repo.Create(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))
}

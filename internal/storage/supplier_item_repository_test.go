package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

func newItem(supplierID uuid.UUID, sku, name, price string) *models.SupplierItem {
	return &models.SupplierItem{
		SupplierID:   supplierID,
		SupplierSKU:  sku,
		Name:         name,
		CurrentPrice: decimal.RequireFromString(price),
		InStock:      true,
	}
}

func TestSupplierItemUpsert_InsertUpdateUnchanged(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormSupplierItemRepository(db)
	supplier := createTestSupplier(t, db, "acme", true)
	ctx := context.Background()

	item := newItem(supplier.ID, "A-1", "Widget", "10.50")
	result, err := repo.Upsert(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, interfaces.UpsertInserted, result)
	assert.Equal(t, models.MatchUnmatched, item.MatchStatus)
	assert.False(t, item.LastIngestedAt.IsZero())

	// Identical row: unchanged, but last_ingested_at still moves.
	firstIngest := item.LastIngestedAt
	time.Sleep(5 * time.Millisecond)
	again := newItem(supplier.ID, "A-1", "Widget", "10.50")
	result, err = repo.Upsert(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, interfaces.UpsertUnchanged, result)
	assert.Equal(t, item.ID, again.ID, "identity is stable across re-ingests")
	assert.True(t, again.LastIngestedAt.After(firstIngest))

	// Price change: updated.
	changed := newItem(supplier.ID, "A-1", "Widget", "11.00")
	result, err = repo.Upsert(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, interfaces.UpsertUpdated, result)
	assert.True(t, changed.CurrentPrice.Equal(decimal.RequireFromString("11.00")))
}

func TestSupplierItemUpsert_ZeroPriceAccepted(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormSupplierItemRepository(db)
	supplier := createTestSupplier(t, db, "acme", true)

	item := newItem(supplier.ID, "FREE-1", "Free sample", "0")
	result, err := repo.Upsert(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, interfaces.UpsertInserted, result)
}

func TestSupplierItemUpsert_PreservesLinkAndStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormSupplierItemRepository(db)
	supplier := createTestSupplier(t, db, "acme", true)
	ctx := context.Background()

	item := newItem(supplier.ID, "A-1", "Widget", "10.50")
	_, err := repo.Upsert(ctx, item)
	require.NoError(t, err)

	product := &models.Product{InternalSKU: "SKU-TEST00000001", Name: "Widget", Status: models.ProductActive}
	require.NoError(t, db.Create(product).Error)
	item.ProductID = &product.ID
	item.MatchStatus = models.MatchMatched
	require.NoError(t, repo.Update(ctx, item))

	// Re-ingest with a new price: the link and status survive.
	update := newItem(supplier.ID, "A-1", "Widget", "12.00")
	result, err := repo.Upsert(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, interfaces.UpsertUpdated, result)
	require.NotNil(t, update.ProductID)
	assert.Equal(t, product.ID, *update.ProductID)
	assert.Equal(t, models.MatchMatched, update.MatchStatus)
}

func TestSupplierItemUpsert_MergesCharacteristics(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormSupplierItemRepository(db)
	supplier := createTestSupplier(t, db, "acme", true)
	ctx := context.Background()

	item := newItem(supplier.ID, "A-1", "Drill", "99.00")
	item.Characteristics = models.JSONMap{"color": "red"}
	_, err := repo.Upsert(ctx, item)
	require.NoError(t, err)

	update := newItem(supplier.ID, "A-1", "Drill", "99.00")
	update.Characteristics = models.JSONMap{"voltage": "220V"}
	result, err := repo.Upsert(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, interfaces.UpsertUpdated, result)
	assert.Equal(t, "red", update.Characteristics["color"], "existing keys are kept")
	assert.Equal(t, "220V", update.Characteristics["voltage"])
}

func TestSupplierItemClaimUnmatched(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormSupplierItemRepository(db)
	acme := createTestSupplier(t, db, "acme", true)
	globex := createTestSupplier(t, db, "globex", true)
	ctx := context.Background()

	for _, sku := range []string{"A-1", "A-2", "A-3"} {
		_, err := repo.Upsert(ctx, newItem(acme.ID, sku, "Widget "+sku, "10"))
		require.NoError(t, err)
	}
	_, err := repo.Upsert(ctx, newItem(globex.ID, "G-1", "Gadget", "20"))
	require.NoError(t, err)

	// Limit is honored.
	items, err := repo.ClaimUnmatched(db, nil, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// Supplier filter is honored.
	items, err = repo.ClaimUnmatched(db, &globex.ID, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "G-1", items[0].SupplierSKU)

	// Matched items are never claimed.
	product := &models.Product{InternalSKU: "SKU-TEST00000002", Name: "Gadget", Status: models.ProductActive}
	require.NoError(t, db.Create(product).Error)
	items[0].ProductID = &product.ID
	items[0].MatchStatus = models.MatchMatched
	require.NoError(t, repo.Update(ctx, &items[0]))

	items, err = repo.ClaimUnmatched(db, &globex.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSupplierItemLinkedActive(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormSupplierItemRepository(db)
	active := createTestSupplier(t, db, "active-co", true)
	inactive := createTestSupplier(t, db, "inactive-co", false)
	ctx := context.Background()

	product := &models.Product{InternalSKU: "SKU-TEST00000003", Name: "Widget", Status: models.ProductActive}
	require.NoError(t, db.Create(product).Error)

	for _, tc := range []struct {
		supplierID uuid.UUID
		sku        string
	}{
		{active.ID, "A-1"},
		{inactive.ID, "I-1"},
	} {
		item := newItem(tc.supplierID, tc.sku, "Widget", "10")
		_, err := repo.Upsert(ctx, item)
		require.NoError(t, err)
		item.ProductID = &product.ID
		item.MatchStatus = models.MatchMatched
		require.NoError(t, repo.Update(ctx, item))
	}

	items, err := repo.LinkedActive(db, product.ID)
	require.NoError(t, err)
	require.Len(t, items, 1, "inactive suppliers are excluded")
	assert.Equal(t, "A-1", items[0].SupplierSKU)
}

func TestSupplierItemMergeCharacteristics(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormSupplierItemRepository(db)
	supplier := createTestSupplier(t, db, "acme", true)
	ctx := context.Background()

	item := newItem(supplier.ID, "A-1", "Drill 220V", "99.00")
	_, err := repo.Upsert(ctx, item)
	require.NoError(t, err)

	require.NoError(t, repo.MergeCharacteristics(ctx, item.ID, map[string]interface{}{
		"voltage_v": 220.0,
	}))
	require.NoError(t, repo.MergeCharacteristics(ctx, item.ID, map[string]interface{}{
		"weight_kg": 1.5,
	}))

	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 220.0, got.Characteristics["voltage_v"])
	assert.Equal(t, 1.5, got.Characteristics["weight_kg"])

	err = repo.MergeCharacteristics(ctx, uuid.New(), map[string]interface{}{"x": 1})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindNotFound, models.KindOf(err))
}

func TestSupplierItemInvariant(t *testing.T) {
	db := openTestDB(t)
	supplier := createTestSupplier(t, db, "acme", true)

	// matched without a link is rejected at the model level.
	bad := newItem(supplier.ID, "A-1", "Widget", "10")
	bad.MatchStatus = models.MatchMatched
	err := db.Create(bad).Error
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))
}

package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"gorm.io/gorm"

	"github.com/skuforge/skuforge/internal/common"
	"github.com/skuforge/skuforge/internal/models"
	"github.com/skuforge/skuforge/internal/storage"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := storage.Open(common.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	items := storage.NewGormSupplierItemRepository(db)
	return NewService(db, items, arbor.NewLogger()), db
}

func createSupplier(t *testing.T, db *gorm.DB, name string, active bool) *models.Supplier {
	t.Helper()
	supplier := &models.Supplier{Name: name, SourceType: models.SourceCSV, IsActive: active}
	require.NoError(t, db.Create(supplier).Error)
	return supplier
}

func createProduct(t *testing.T, db *gorm.DB) *models.Product {
	t.Helper()
	product := &models.Product{
		InternalSKU: common.NewInternalSKU("SKU"),
		Name:        "Widget",
		Status:      models.ProductActive,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func linkItem(t *testing.T, db *gorm.DB, supplierID, productID uuid.UUID, sku, price string, inStock bool) {
	t.Helper()
	item := &models.SupplierItem{
		SupplierID:     supplierID,
		SupplierSKU:    sku,
		Name:           "Widget",
		CurrentPrice:   decimal.RequireFromString(price),
		InStock:        inStock,
		ProductID:      &productID,
		MatchStatus:    models.MatchMatched,
		LastIngestedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(item).Error)
}

func reloadProduct(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Product {
	t.Helper()
	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", id).Error)
	return &product
}

func TestRecompute_MinPriceAndAvailability(t *testing.T) {
	svc, db := newTestService(t)
	supplier := createSupplier(t, db, "acme", true)
	product := createProduct(t, db)

	linkItem(t, db, supplier.ID, product.ID, "A-1", "12.50", false)
	linkItem(t, db, supplier.ID, product.ID, "A-2", "9.99", true)
	linkItem(t, db, supplier.ID, product.ID, "A-3", "15.00", false)

	require.NoError(t, svc.Recompute(context.Background(), product.ID))

	got := reloadProduct(t, db, product.ID)
	require.True(t, got.MinPrice.Valid)
	assert.True(t, got.MinPrice.Decimal.Equal(decimal.RequireFromString("9.99")))
	assert.True(t, got.Availability, "any in-stock item makes the product available")
}

func TestRecompute_AllOutOfStock(t *testing.T) {
	svc, db := newTestService(t)
	supplier := createSupplier(t, db, "acme", true)
	product := createProduct(t, db)

	linkItem(t, db, supplier.ID, product.ID, "A-1", "12.50", false)

	require.NoError(t, svc.Recompute(context.Background(), product.ID))

	got := reloadProduct(t, db, product.ID)
	assert.False(t, got.Availability)
	assert.True(t, got.MinPrice.Valid)
}

func TestRecompute_InactiveSupplierExcluded(t *testing.T) {
	svc, db := newTestService(t)
	active := createSupplier(t, db, "active-co", true)
	inactive := createSupplier(t, db, "inactive-co", false)
	product := createProduct(t, db)

	linkItem(t, db, active.ID, product.ID, "A-1", "20.00", false)
	// Cheaper and in stock, but the supplier is deactivated.
	linkItem(t, db, inactive.ID, product.ID, "I-1", "5.00", true)

	require.NoError(t, svc.Recompute(context.Background(), product.ID))

	got := reloadProduct(t, db, product.ID)
	require.True(t, got.MinPrice.Valid)
	assert.True(t, got.MinPrice.Decimal.Equal(decimal.RequireFromString("20.00")))
	assert.False(t, got.Availability)
}

func TestRecompute_NoLinkedItemsClearsAggregates(t *testing.T) {
	svc, db := newTestService(t)
	supplier := createSupplier(t, db, "acme", true)
	product := createProduct(t, db)

	linkItem(t, db, supplier.ID, product.ID, "A-1", "12.50", true)
	require.NoError(t, svc.Recompute(context.Background(), product.ID))
	require.True(t, reloadProduct(t, db, product.ID).MinPrice.Valid)

	// Supplier deactivated: aggregates reset to null/false.
	require.NoError(t, db.Model(&models.Supplier{}).
		Where("id = ?", supplier.ID).
		Update("is_active", false).Error)
	require.NoError(t, svc.Recompute(context.Background(), product.ID))

	got := reloadProduct(t, db, product.ID)
	assert.False(t, got.MinPrice.Valid, "min_price is null with no active links")
	assert.False(t, got.Availability)
}

func TestRecompute_ZeroPriceIsValidMinimum(t *testing.T) {
	svc, db := newTestService(t)
	supplier := createSupplier(t, db, "acme", true)
	product := createProduct(t, db)

	linkItem(t, db, supplier.ID, product.ID, "A-1", "0", true)
	linkItem(t, db, supplier.ID, product.ID, "A-2", "10.00", true)

	require.NoError(t, svc.Recompute(context.Background(), product.ID))

	got := reloadProduct(t, db, product.ID)
	require.True(t, got.MinPrice.Valid)
	assert.True(t, got.MinPrice.Decimal.IsZero())
}

func TestRecompute_UnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Recompute(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindNotFound, models.KindOf(err))
}

func TestRecomputeBatch_CountsFailures(t *testing.T) {
	svc, db := newTestService(t)
	supplier := createSupplier(t, db, "acme", true)
	product := createProduct(t, db)
	linkItem(t, db, supplier.ID, product.ID, "A-1", "10.00", true)

	failed := svc.RecomputeBatch(context.Background(), []uuid.UUID{product.ID, uuid.New()})
	assert.Equal(t, 1, failed)
}

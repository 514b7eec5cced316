package workers

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"gorm.io/gorm"

	"github.com/skuforge/skuforge/internal/common"
	"github.com/skuforge/skuforge/internal/matching"
	"github.com/skuforge/skuforge/internal/models"
	"github.com/skuforge/skuforge/internal/queue"
	"github.com/skuforge/skuforge/internal/storage"
)

type matchWorkerFixture struct {
	db     *gorm.DB
	worker *MatchWorker
}

func newMatchWorkerFixture(t *testing.T, thresholds matching.Thresholds, batchSize int) *matchWorkerFixture {
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

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	bdb, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { bdb.Close() })

	q, err := queue.NewManager(bdb, "test_tasks", 5*time.Minute, 3, time.Second, 5*time.Minute)
	require.NoError(t, err)

	logger := arbor.NewLogger()
	service := matching.NewService(
		db,
		storage.NewGormSupplierItemRepository(db),
		storage.NewGormProductRepository(db),
		storage.NewGormCategoryRepository(db),
		storage.NewGormReviewRepository(db),
		q,
		matching.NewMatcher(thresholds, 5),
		matching.Options{BatchSize: batchSize, ReviewTTL: 24 * time.Hour, SKUPrefix: "SKU"},
		logger,
	)

	return &matchWorkerFixture{db: db, worker: NewMatchWorker(service, logger)}
}

func (f *matchWorkerFixture) createSupplier(t *testing.T) *models.Supplier {
	t.Helper()
	supplier := &models.Supplier{Name: "acme", SourceType: models.SourceCSV, IsActive: true}
	require.NoError(t, f.db.Create(supplier).Error)
	return supplier
}

func (f *matchWorkerFixture) createCategory(t *testing.T, name string) *models.Category {
	t.Helper()
	category := &models.Category{Name: name, IsActive: true}
	require.NoError(t, f.db.Create(category).Error)
	return category
}

func (f *matchWorkerFixture) createItem(t *testing.T, supplierID uuid.UUID, sku, name string, categoryID *uuid.UUID) *models.SupplierItem {
	t.Helper()
	item := &models.SupplierItem{
		SupplierID:     supplierID,
		SupplierSKU:    sku,
		Name:           name,
		CurrentPrice:   decimal.RequireFromString("10"),
		InStock:        true,
		CategoryID:     categoryID,
		MatchStatus:    models.MatchUnmatched,
		LastIngestedAt: time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(item).Error)
	return item
}

func matchTask(t *testing.T, supplierID uuid.UUID) *models.TaskMessage {
	t.Helper()
	msg, err := models.NewTaskMessageWithID("match:task-1", models.TaskKindMatchItems,
		models.MatchItemsPayload{SupplierID: supplierID})
	require.NoError(t, err)
	return msg
}

func TestMatchWorker_DrainsAcrossBatches(t *testing.T) {
	f := newMatchWorkerFixture(t, matching.DefaultThresholds, 1)
	supplier := f.createSupplier(t)
	category := f.createCategory(t, "Laptops")

	f.createItem(t, supplier.ID, "A-1", "Quantum Phone", &category.ID)
	f.createItem(t, supplier.ID, "A-2", "Plasma Tablet", &category.ID)

	err := f.worker.Execute(context.Background(), matchTask(t, supplier.ID))
	require.NoError(t, err)

	var remaining int64
	require.NoError(t, f.db.Model(&models.SupplierItem{}).
		Where("match_status = ?", models.MatchUnmatched).
		Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestMatchWorker_PersistentItemFailureTerminates(t *testing.T) {
	f := newMatchWorkerFixture(t, matching.Thresholds{Auto: 99.5, Review: 70}, 50)
	supplier := f.createSupplier(t)
	category := f.createCategory(t, "Laptops")

	product := &models.Product{
		InternalSKU: common.NewInternalSKU("SKU"),
		Name:        "Dell XPS 13 Pro",
		CategoryID:  &category.ID,
		Status:      models.ProductActive,
	}
	require.NoError(t, f.db.Create(product).Error)
	item := f.createItem(t, supplier.ID, "A-1", "Dell XPS 13", &category.ID)

	// The review upsert fails on every pass, so the item keeps coming back
	// unmatched. The drain loop must still terminate.
	require.NoError(t, f.db.Migrator().DropTable(&models.MatchReviewQueue{}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := f.worker.Execute(ctx, matchTask(t, supplier.ID))
	require.NoError(t, err)
	require.NoError(t, ctx.Err(), "worker must return on its own, not via the deadline")

	var got models.SupplierItem
	require.NoError(t, f.db.First(&got, "id = ?", item.ID).Error)
	assert.Equal(t, models.MatchUnmatched, got.MatchStatus)
}

func TestMatchWorker_PartialProgressKeepsDraining(t *testing.T) {
	f := newMatchWorkerFixture(t, matching.Thresholds{Auto: 99.5, Review: 70}, 50)
	supplier := f.createSupplier(t)
	category := f.createCategory(t, "Laptops")

	product := &models.Product{
		InternalSKU: common.NewInternalSKU("SKU"),
		Name:        "Dell XPS 13 Pro",
		CategoryID:  &category.ID,
		Status:      models.ProductActive,
	}
	require.NoError(t, f.db.Create(product).Error)

	// One item lands in review and keeps failing once the table is gone;
	// the other has no near match and creates a product.
	stuck := f.createItem(t, supplier.ID, "A-1", "Dell XPS 13", &category.ID)
	fine := f.createItem(t, supplier.ID, "A-2", "Plasma Tablet", &category.ID)
	require.NoError(t, f.db.Migrator().DropTable(&models.MatchReviewQueue{}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := f.worker.Execute(ctx, matchTask(t, supplier.ID))
	require.NoError(t, err)

	var got models.SupplierItem
	require.NoError(t, f.db.First(&got, "id = ?", fine.ID).Error)
	assert.Equal(t, models.MatchMatched, got.MatchStatus)

	require.NoError(t, f.db.First(&got, "id = ?", stuck.ID).Error)
	assert.Equal(t, models.MatchUnmatched, got.MatchStatus)
}

package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuforge/skuforge/internal/models"
)

// pendingFixture runs one matching pass that lands an item in the review
// queue and returns the pending row.
func pendingFixture(t *testing.T, f *matchingFixture) (*models.MatchReviewQueue, *models.SupplierItem, *models.Product) {
	t.Helper()

	supplier := f.createSupplier(t, "acme")
	category := f.createCategory(t, "Laptops", nil)
	candidate := f.createProduct(t, "Dell XPS 13 Pro", &category.ID, models.ProductActive)
	item := f.createItem(t, supplier.ID, "A-1", "Dell XPS 13", &category.ID)

	summary, err := f.service.ProcessBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Potential)

	var review models.MatchReviewQueue
	require.NoError(t, f.db.First(&review, "supplier_item_id = ?", item.ID).Error)
	return &review, f.reloadItem(t, item.ID), candidate
}

func TestReviewApply_Approve(t *testing.T) {
	f := newMatchingFixture(t, Thresholds{Auto: 99.5, Review: 70})
	review, item, candidate := pendingFixture(t, f)

	row, err := f.reviews.Apply(context.Background(), review.ID, models.ReviewAction{
		Action:     "approve",
		ProductID:  &candidate.ID,
		ReviewedBy: "operator@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, row.Status)
	require.NotNil(t, row.ReviewedAt)
	assert.Equal(t, "operator@example.com", *row.ReviewedBy)

	got := f.reloadItem(t, item.ID)
	assert.Equal(t, models.MatchMatched, got.MatchStatus)
	require.NotNil(t, got.ProductID)
	assert.Equal(t, candidate.ID, *got.ProductID)

	// The approved product gets a recalc.
	assert.Equal(t, []string{models.RecalcTaskID(candidate.ID)}, f.drainQueue(t))
}

func TestReviewApply_RejectCreatesProductFromItemName(t *testing.T) {
	f := newMatchingFixture(t, Thresholds{Auto: 99.5, Review: 70})
	review, item, candidate := pendingFixture(t, f)

	row, err := f.reviews.Apply(context.Background(), review.ID, models.ReviewAction{Action: "reject"})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewRejected, row.Status)

	got := f.reloadItem(t, item.ID)
	require.NotNil(t, got.ProductID)
	assert.NotEqual(t, candidate.ID, *got.ProductID)

	var product models.Product
	require.NoError(t, f.db.First(&product, "id = ?", *got.ProductID).Error)
	assert.Equal(t, item.Name, product.Name)
	assert.Equal(t, models.ProductActive, product.Status)

	assert.Equal(t, []string{models.RecalcTaskID(product.ID)}, f.drainQueue(t))
}

func TestReviewApply_CreateNewUsesGivenName(t *testing.T) {
	f := newMatchingFixture(t, Thresholds{Auto: 99.5, Review: 70})
	review, item, _ := pendingFixture(t, f)

	row, err := f.reviews.Apply(context.Background(), review.ID, models.ReviewAction{
		Action:         "create_new",
		NewProductName: "Dell XPS 13 (2024 refresh)",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewRejected, row.Status)

	got := f.reloadItem(t, item.ID)
	require.NotNil(t, got.ProductID)

	var product models.Product
	require.NoError(t, f.db.First(&product, "id = ?", *got.ProductID).Error)
	assert.Equal(t, "Dell XPS 13 (2024 refresh)", product.Name)
}

func TestReviewApply_ActionValidation(t *testing.T) {
	f := newMatchingFixture(t, Thresholds{Auto: 99.5, Review: 70})
	review, _, _ := pendingFixture(t, f)
	ctx := context.Background()

	_, err := f.reviews.Apply(ctx, review.ID, models.ReviewAction{Action: "approve"})
	require.Error(t, err, "approve requires product_id")
	assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))

	_, err = f.reviews.Apply(ctx, review.ID, models.ReviewAction{Action: "create_new"})
	require.Error(t, err, "create_new requires new_product_name")

	_, err = f.reviews.Apply(ctx, review.ID, models.ReviewAction{Action: "escalate"})
	require.Error(t, err, "unknown action")
}

func TestReviewApply_NonPendingRejected(t *testing.T) {
	f := newMatchingFixture(t, Thresholds{Auto: 99.5, Review: 70})
	review, _, candidate := pendingFixture(t, f)
	ctx := context.Background()

	_, err := f.reviews.Apply(ctx, review.ID, models.ReviewAction{Action: "approve", ProductID: &candidate.ID})
	require.NoError(t, err)

	// Second resolution of the same row fails.
	_, err = f.reviews.Apply(ctx, review.ID, models.ReviewAction{Action: "reject"})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindValidation, models.KindOf(err))
}

func TestReviewApply_UnknownReview(t *testing.T) {
	f := newMatchingFixture(t, DefaultThresholds)
	productID := uuid.New()

	_, err := f.reviews.Apply(context.Background(), uuid.New(), models.ReviewAction{
		Action:    "approve",
		ProductID: &productID,
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindNotFound, models.KindOf(err))
}

func TestReviewApply_ApproveUnknownProduct(t *testing.T) {
	f := newMatchingFixture(t, Thresholds{Auto: 99.5, Review: 70})
	review, item, _ := pendingFixture(t, f)
	missing := uuid.New()

	_, err := f.reviews.Apply(context.Background(), review.ID, models.ReviewAction{
		Action:    "approve",
		ProductID: &missing,
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindNotFound, models.KindOf(err))

	// Nothing changed: the row is still pending, the item unlinked.
	var row models.MatchReviewQueue
	require.NoError(t, f.db.First(&row, "id = ?", review.ID).Error)
	assert.Equal(t, models.ReviewPending, row.Status)
	assert.Nil(t, f.reloadItem(t, item.ID).ProductID)
}

func TestReviewExpireDueRevertsItems(t *testing.T) {
	f := newMatchingFixture(t, Thresholds{Auto: 99.5, Review: 70})
	review, item, _ := pendingFixture(t, f)

	// Force the TTL into the past.
	require.NoError(t, f.db.Model(&models.MatchReviewQueue{}).
		Where("id = ?", review.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	expired, err := f.reviews.ExpireDue(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	var row models.MatchReviewQueue
	require.NoError(t, f.db.First(&row, "id = ?", review.ID).Error)
	assert.Equal(t, models.ReviewExpired, row.Status)

	// The item returns to unmatched for the next matching pass.
	assert.Equal(t, models.MatchUnmatched, f.reloadItem(t, item.ID).MatchStatus)

	expired, err = f.reviews.ExpireDue(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, expired)
}

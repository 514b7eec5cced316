package workers

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/matching"
	"github.com/skuforge/skuforge/internal/models"
)

// ReviewExpiryWorker executes review_expiry messages: the periodic sweep
// that expires stale review rows and returns their items to the pool.
type ReviewExpiryWorker struct {
	reviews *matching.ReviewService
	logger  arbor.ILogger
}

var _ interfaces.TaskWorker = (*ReviewExpiryWorker)(nil)

// NewReviewExpiryWorker creates the review-expiry worker.
func NewReviewExpiryWorker(reviews *matching.ReviewService, logger arbor.ILogger) *ReviewExpiryWorker {
	return &ReviewExpiryWorker{reviews: reviews, logger: logger}
}

func (w *ReviewExpiryWorker) Kind() models.TaskKind {
	return models.TaskKindReviewSweep
}

func (w *ReviewExpiryWorker) Execute(ctx context.Context, msg *models.TaskMessage) error {
	expired, err := w.reviews.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if expired > 0 {
		w.logger.Info().
			Str("task_id", msg.TaskID).
			Int("expired", expired).
			Msg("Review expiry sweep completed")
	}
	return nil
}

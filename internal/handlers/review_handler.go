package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/matching"
	"github.com/skuforge/skuforge/internal/models"
)

// ReviewHandler serves the match review queue: listing with filters and
// the operator actions that resolve a pending row.
type ReviewHandler struct {
	reviews *matching.ReviewService
	logger  arbor.ILogger
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviews *matching.ReviewService, logger arbor.ILogger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

// ListHandler handles GET /api/reviews
func (h *ReviewHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	filter, err := parseReviewFilter(r)
	if err != nil {
		WritePipelineError(w, err)
		return
	}

	rows, err := h.reviews.List(r.Context(), filter)
	if err != nil {
		WritePipelineError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reviews": rows,
		"count":   len(rows),
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// ActionHandler handles POST /api/reviews/{id}/action
func (h *ReviewHandler) ActionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/reviews/")
	idPart := strings.TrimSuffix(path, "/action")
	reviewID, err := uuid.Parse(idPart)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid review id")
		return
	}

	var action models.ReviewAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	row, err := h.reviews.Apply(r.Context(), reviewID, action)
	if err != nil {
		WritePipelineError(w, err)
		return
	}

	h.logger.Info().
		Str("review_id", reviewID.String()).
		Str("action", action.Action).
		Msg("Review action applied")
	WriteJSON(w, http.StatusOK, row)
}

func parseReviewFilter(r *http.Request) (models.ReviewFilter, error) {
	q := r.URL.Query()
	filter := models.ReviewFilter{}

	if v := q.Get("status"); v != "" {
		filter.Status = models.ReviewStatus(v)
	}
	if v := q.Get("supplier_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, models.NewValidationError("invalid supplier_id", nil)
		}
		filter.SupplierID = &id
	}
	if v := q.Get("category_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, models.NewValidationError("invalid category_id", nil)
		}
		filter.CategoryID = &id
	}
	if v := q.Get("min_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, models.NewValidationError("invalid min_score", nil)
		}
		filter.MinScore = &score
	}
	if v := q.Get("max_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, models.NewValidationError("invalid max_score", nil)
		}
		filter.MaxScore = &score
	}
	if v := q.Get("created_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, models.NewValidationError("invalid created_after", nil)
		}
		filter.CreatedAfter = &t
	}
	if v := q.Get("created_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, models.NewValidationError("invalid created_before", nil)
		}
		filter.CreatedBefore = &t
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, models.NewValidationError("invalid limit", nil)
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return filter, models.NewValidationError("invalid offset", nil)
		}
		filter.Offset = offset
	}

	filter.Normalize()
	return filter, nil
}

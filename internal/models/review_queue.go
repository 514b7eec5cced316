package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReviewStatus is the lifecycle of a review-queue row.
type ReviewStatus string

const (
	ReviewPending       ReviewStatus = "pending"
	ReviewApproved      ReviewStatus = "approved"
	ReviewRejected      ReviewStatus = "rejected"
	ReviewExpired       ReviewStatus = "expired"
	ReviewNeedsCategory ReviewStatus = "needs_category"
)

// ReviewCandidate is one scored product suggestion shown to the reviewer.
type ReviewCandidate struct {
	ProductID uuid.UUID `json:"product_id"`
	Score     float64   `json:"score"`
	Name      string    `json:"name"`
}

// CandidateList stores the ranked candidates as a JSON column.
type CandidateList []ReviewCandidate

func (c CandidateList) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (c *CandidateList) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CandidateList", value)
	}
	return json.Unmarshal(data, c)
}

func (CandidateList) GormDataType() string {
	return "jsonb"
}

// MatchReviewQueue holds supplier items whose best candidate landed in the
// potential band. At most one row exists per supplier item, and it exists
// iff the item's match_status is potential.
type MatchReviewQueue struct {
	ID                uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SupplierItemID    uuid.UUID     `gorm:"column:supplier_item_id;type:uuid;not null;uniqueIndex" json:"supplier_item_id"`
	CandidateProducts CandidateList `gorm:"column:candidate_products;type:jsonb" json:"candidate_products"`
	BestScore         float64       `gorm:"column:best_score;not null;default:0" json:"best_score"`
	Status            ReviewStatus  `gorm:"column:status;not null;default:'pending';index" json:"status"`
	ReviewedBy        *string       `gorm:"column:reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time    `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt         time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ExpiresAt         time.Time     `gorm:"column:expires_at;not null;index" json:"expires_at"`

	SupplierItem *SupplierItem `gorm:"foreignKey:SupplierItemID;constraint:OnDelete:CASCADE" json:"-"`
}

func (MatchReviewQueue) TableName() string {
	return "match_review_queue"
}

func (r *MatchReviewQueue) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ReviewAction is the operator write on a review row.
type ReviewAction struct {
	Action         string     `json:"action" validate:"required,oneof=approve reject create_new"`
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	NewProductName string     `json:"new_product_name,omitempty"`
	ReviewedBy     string     `json:"reviewed_by,omitempty"`
}

// Validate enforces the per-action required fields.
func (a *ReviewAction) Validate() error {
	if err := taskValidate.Struct(a); err != nil {
		return NewValidationError("invalid review action", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if a.Action == "approve" && a.ProductID == nil {
		return NewValidationError("product_id is required for approve", nil)
	}
	if a.Action == "create_new" && a.NewProductName == "" {
		return NewValidationError("new_product_name is required for create_new", nil)
	}
	return nil
}

// ReviewFilter narrows the review-queue listing.
type ReviewFilter struct {
	Status        ReviewStatus
	SupplierID    *uuid.UUID
	CategoryID    *uuid.UUID
	MinScore      *float64
	MaxScore      *float64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// MaxReviewListLimit caps review-queue listings.
const MaxReviewListLimit = 200

// Normalize clamps the limit into (0, MaxReviewListLimit].
func (f *ReviewFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > MaxReviewListLimit {
		f.Limit = MaxReviewListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

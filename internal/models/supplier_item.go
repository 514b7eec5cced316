package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MatchStatus drives the per-item pipeline state machine.
type MatchStatus string

const (
	MatchUnmatched     MatchStatus = "unmatched"
	MatchPotential     MatchStatus = "potential"
	MatchMatched       MatchStatus = "matched"
	MatchNeedsCategory MatchStatus = "needs_category"
)

// SupplierItem is a persisted raw row from a supplier price list, unique
// per (supplier_id, supplier_sku).
//
// Invariant: match_status = matched iff product_id is set.
type SupplierItem struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SupplierID      uuid.UUID           `gorm:"column:supplier_id;type:uuid;not null;uniqueIndex:uq_supplier_sku" json:"supplier_id"`
	SupplierSKU     string              `gorm:"column:supplier_sku;not null;uniqueIndex:uq_supplier_sku" json:"supplier_sku"`
	Name            string              `gorm:"column:name;not null" json:"name"`
	CurrentPrice    decimal.Decimal     `gorm:"column:current_price;type:numeric(14,2);not null;check:chk_item_price,current_price >= 0" json:"current_price"`
	PriceOpt        decimal.NullDecimal `gorm:"column:price_opt;type:numeric(14,2)" json:"price_opt,omitempty"`
	PriceRRC        decimal.NullDecimal `gorm:"column:price_rrc;type:numeric(14,2)" json:"price_rrc,omitempty"`
	InStock         bool                `gorm:"column:in_stock;not null;default:false" json:"in_stock"`
	Characteristics JSONMap             `gorm:"column:characteristics;type:jsonb" json:"characteristics,omitempty"`
	ProductID       *uuid.UUID          `gorm:"column:product_id;type:uuid;index" json:"product_id,omitempty"`
	MatchStatus     MatchStatus         `gorm:"column:match_status;not null;default:'unmatched';index" json:"match_status"`
	CategoryID      *uuid.UUID          `gorm:"column:category_id;type:uuid;index" json:"category_id,omitempty"`
	LastIngestedAt  time.Time           `gorm:"column:last_ingested_at;not null" json:"last_ingested_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Supplier *Supplier `gorm:"foreignKey:SupplierID" json:"-"`
	Product  *Product  `gorm:"foreignKey:ProductID" json:"-"`
}

func (SupplierItem) TableName() string {
	return "supplier_items"
}

func (s *SupplierItem) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// BeforeSave enforces the matched ⇔ linked invariant at the model level.
func (s *SupplierItem) BeforeSave(tx *gorm.DB) error {
	if s.MatchStatus == MatchMatched && s.ProductID == nil {
		return NewValidationError("matched item requires product_id", map[string]interface{}{
			"supplier_item_id": s.ID.String(),
		})
	}
	if s.MatchStatus != MatchMatched && s.ProductID != nil {
		return NewValidationError("unlinked status with product_id set", map[string]interface{}{
			"supplier_item_id": s.ID.String(),
			"match_status":     string(s.MatchStatus),
		})
	}
	return nil
}

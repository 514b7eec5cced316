package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductStatus is the catalog lifecycle of a product.
type ProductStatus string

const (
	ProductDraft    ProductStatus = "draft"
	ProductActive   ProductStatus = "active"
	ProductArchived ProductStatus = "archived"
)

// Product is a canonical catalog entry. min_price and availability are
// aggregates over linked supplier items and are only written by the
// aggregation engine.
type Product struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InternalSKU    string              `gorm:"column:internal_sku;uniqueIndex;not null" json:"internal_sku"`
	Name           string              `gorm:"column:name;not null;index" json:"name"`
	CategoryID     *uuid.UUID          `gorm:"column:category_id;type:uuid;index" json:"category_id,omitempty"`
	Status         ProductStatus       `gorm:"column:status;not null;default:'draft'" json:"status"`
	MinPrice       decimal.NullDecimal `gorm:"column:min_price;type:numeric(14,2)" json:"min_price,omitempty"`
	Availability   bool                `gorm:"column:availability;not null;default:false" json:"availability"`
	RetailPrice    decimal.NullDecimal `gorm:"column:retail_price;type:numeric(14,2)" json:"retail_price,omitempty"`
	WholesalePrice decimal.NullDecimal `gorm:"column:wholesale_price;type:numeric(14,2)" json:"wholesale_price,omitempty"`
	CurrencyCode   *string             `gorm:"column:currency_code;size:3" json:"currency_code,omitempty"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Category *Category      `gorm:"foreignKey:CategoryID" json:"-"`
	Items    []SupplierItem `gorm:"foreignKey:ProductID;constraint:OnDelete:SET NULL" json:"-"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CurrencyCode != nil && !ValidCurrencyCode(*p.CurrencyCode) {
		return NewValidationError("invalid currency code", map[string]interface{}{
			"currency_code": *p.CurrencyCode,
		})
	}
	return nil
}

// ProductRef is the (id, name) pair the matcher scores against.
type ProductRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

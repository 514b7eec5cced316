package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SourceType identifies how a supplier publishes its price list.
type SourceType string

const (
	SourceGoogleSheets SourceType = "google_sheets"
	SourceCSV          SourceType = "csv"
	SourceExcel        SourceType = "excel"
	SourcePDF          SourceType = "pdf"
)

// ValidSourceType reports whether s is a recognized source format.
func ValidSourceType(s string) bool {
	switch SourceType(s) {
	case SourceGoogleSheets, SourceCSV, SourceExcel, SourcePDF:
		return true
	}
	return false
}

// Supplier is a row in the supplier registry. Suppliers are created and
// updated by master-sync and soft-deactivated, never hard-deleted.
type Supplier struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name           string     `gorm:"column:name;uniqueIndex;not null" json:"name"`
	SourceType     SourceType `gorm:"column:source_type;not null" json:"source_type"`
	Meta           JSONMap    `gorm:"column:meta;type:jsonb" json:"meta,omitempty"`
	Notes          string     `gorm:"column:notes" json:"notes,omitempty"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	UseSemanticETL bool       `gorm:"column:use_semantic_etl;not null;default:false" json:"use_semantic_etl"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Items []SupplierItem `gorm:"foreignKey:SupplierID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Supplier) TableName() string {
	return "suppliers"
}

// BeforeCreate assigns the id when the caller did not.
func (s *Supplier) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SourceURL returns the meta.source_url value when present.
func (s *Supplier) SourceURL() string {
	if s.Meta == nil {
		return ""
	}
	if u, ok := s.Meta["source_url"].(string); ok {
		return u
	}
	return ""
}

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidCurrencyCode reports whether code is an ISO-4217 style code.
// Nil/empty is allowed at call sites; this checks the format only.
func ValidCurrencyCode(code string) bool {
	return currencyCodeRe.MatchString(code)
}

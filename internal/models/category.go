package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category is a node in the self-referential category tree. The tree is
// acyclic; a node is never its own parent. (name, parent_id) is unique.
type Category struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"column:name;not null;uniqueIndex:uq_category_name_parent" json:"name"`
	ParentID    *uuid.UUID `gorm:"column:parent_id;type:uuid;uniqueIndex:uq_category_name_parent;check:chk_category_not_self,parent_id <> id" json:"parent_id,omitempty"`
	NeedsReview bool       `gorm:"column:needs_review;not null;default:false" json:"needs_review"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	SupplierID  *uuid.UUID `gorm:"column:supplier_id;type:uuid" json:"supplier_id,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Parent   *Category  `gorm:"foreignKey:ParentID" json:"-"`
	Children []Category `gorm:"foreignKey:ParentID" json:"-"`
}

func (Category) TableName() string {
	return "categories"
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.ParentID != nil && *c.ParentID == c.ID {
		return NewValidationError("category cannot be its own parent", map[string]interface{}{
			"category_id": c.ID.String(),
		})
	}
	return nil
}

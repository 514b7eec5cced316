package models

import (
	"time"

	"github.com/google/uuid"
)

// ParsingLog is an append-only diagnostic stream for parse and pipeline
// failures. One row per failure; never updated.
type ParsingLog struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TaskID          string     `gorm:"column:task_id;not null;index" json:"task_id"`
	SupplierID      *uuid.UUID `gorm:"column:supplier_id;type:uuid;index" json:"supplier_id,omitempty"`
	ErrorType       string     `gorm:"column:error_type;not null" json:"error_type"`
	ErrorMessage    string     `gorm:"column:error_message;type:text;not null" json:"error_message"`
	RowNumber       *int       `gorm:"column:row_number" json:"row_number,omitempty"`
	RowData         *string    `gorm:"column:row_data;type:text" json:"row_data,omitempty"`
	ChunkID         *string    `gorm:"column:chunk_id" json:"chunk_id,omitempty"`
	ExtractionPhase *string    `gorm:"column:extraction_phase" json:"extraction_phase,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ParsingLog) TableName() string {
	return "parsing_logs"
}

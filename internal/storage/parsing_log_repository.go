package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// GormParsingLogRepository implements ParsingLogRepository using GORM.
type GormParsingLogRepository struct {
	db *gorm.DB
}

var _ interfaces.ParsingLogRepository = (*GormParsingLogRepository)(nil)

// NewGormParsingLogRepository creates a new GORM parsing log repository.
func NewGormParsingLogRepository(db *gorm.DB) *GormParsingLogRepository {
	return &GormParsingLogRepository{db: db}
}

func (r *GormParsingLogRepository) Append(ctx context.Context, entry *models.ParsingLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return models.NewDatabaseError("failed to append parsing log", err)
	}
	return nil
}

func (r *GormParsingLogRepository) ListByTask(ctx context.Context, taskID string) ([]models.ParsingLog, error) {
	var entries []models.ParsingLog
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("id").
		Find(&entries).Error
	if err != nil {
		return nil, models.NewDatabaseError("failed to list parsing logs", err)
	}
	return entries, nil
}

package storage

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/skuforge/skuforge/internal/common"
	"github.com/skuforge/skuforge/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(common.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createTestSupplier(t *testing.T, db *gorm.DB, name string, active bool) *models.Supplier {
	t.Helper()
	supplier := &models.Supplier{
		Name:       name,
		SourceType: models.SourceCSV,
		IsActive:   active,
		Meta:       models.JSONMap{"source_url": "uploads/" + name + ".csv"},
	}
	require.NoError(t, db.Create(supplier).Error)
	return supplier
}

func createTestCategory(t *testing.T, db *gorm.DB, name string, parentID *uuid.UUID) *models.Category {
	t.Helper()
	category := &models.Category{Name: name, ParentID: parentID, IsActive: true}
	require.NoError(t, db.Create(category).Error)
	return category
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(common.DatabaseConfig{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
}

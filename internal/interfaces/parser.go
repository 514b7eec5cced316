package interfaces

import (
	"context"

	"github.com/skuforge/skuforge/internal/models"
)

// Parser turns a source configuration into parsed supplier items. Parsers
// are pure with respect to the catalog: they never touch the database.
// Rows that violate the parsed-item contract are returned as RowErrors and
// dropped; a Parser only fails as a whole when the source itself is
// unreachable or malformed.
type Parser interface {
	Name() string
	ValidateConfig(config map[string]interface{}) error
	Parse(ctx context.Context, config map[string]interface{}) ([]models.ParsedSupplierItem, []models.RowError, error)
}

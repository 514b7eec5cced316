package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewTaskID generates a unique task ID with the "task_" prefix
// Format: task_<uuid>
func NewTaskID() string {
	return "task_" + uuid.New().String()
}

// NewInternalSKU generates a collision-resistant internal SKU.
// Format: <prefix>-<12 uppercase hex chars>. Uniqueness is enforced by the
// products.internal_sku index; callers retry on a unique violation.
func NewInternalSKU(prefix string) string {
	if prefix == "" {
		prefix = "SKU"
	}
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "-" + strings.ToUpper(raw[:12])
}

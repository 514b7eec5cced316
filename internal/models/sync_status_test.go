package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncSummaryOutcome(t *testing.T) {
	tests := []struct {
		name    string
		summary SyncSummary
		want    SyncResultStatus
	}{
		{
			name:    "clean run",
			summary: SyncSummary{SuppliersCreated: 2, SuppliersUpdated: 1},
			want:    SyncSuccess,
		},
		{
			name:    "empty run",
			summary: SyncSummary{},
			want:    SyncSuccess,
		},
		{
			name: "skipped rows alongside progress",
			summary: SyncSummary{
				SuppliersUpdated: 3,
				SuppliersSkipped: 1,
				Errors:           []string{"row 4 (globex): unknown format \"fax\""},
			},
			want: SyncPartialSuccess,
		},
		{
			name: "enqueue failure alongside progress",
			summary: SyncSummary{
				SuppliersCreated: 2,
				Errors:           []string{"enqueue parse task for acme: queue closed"},
			},
			want: SyncPartialSuccess,
		},
		{
			name:    "fetch failure before any row",
			summary: SyncSummary{Errors: []string{"master sheet is empty"}},
			want:    SyncError,
		},
		{
			name: "every row skipped",
			summary: SyncSummary{
				SuppliersSkipped: 2,
				Errors:           []string{"row 2: supplier_name is empty", "row 3: supplier_name is empty"},
			},
			want: SyncError,
		},
		{
			name: "deactivation only still counts as progress",
			summary: SyncSummary{
				SuppliersDeactivated: 1,
				SuppliersSkipped:     1,
				Errors:               []string{"row 5 (initech): invalid source_url \"\""},
			},
			want: SyncPartialSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.summary.Outcome())
		})
	}
}

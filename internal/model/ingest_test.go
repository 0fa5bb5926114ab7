package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusClosed(t *testing.T) {
	t.Parallel()

	assert.False(t, JobStatusPending.Closed())
	assert.False(t, JobStatusProcessing.Closed())
	assert.True(t, JobStatusCompleted.Closed())
	assert.True(t, JobStatusFailed.Closed())
}

func TestLedgerEntryReusable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		entry    LedgerEntry
		checksum string
		want     bool
	}{
		{
			name:     "completed with records and matching checksum",
			entry:    LedgerEntry{Status: LedgerStatusCompleted, RecordsImported: 12, Checksum: "abc"},
			checksum: "abc",
			want:     true,
		},
		{
			name:     "completed with records, no candidate checksum",
			entry:    LedgerEntry{Status: LedgerStatusCompleted, RecordsImported: 12, Checksum: "abc"},
			checksum: "",
			want:     true,
		},
		{
			name:     "checksum mismatch forces reprocess",
			entry:    LedgerEntry{Status: LedgerStatusCompleted, RecordsImported: 12, Checksum: "abc"},
			checksum: "def",
			want:     false,
		},
		{
			name:     "zero records imported forces reprocess",
			entry:    LedgerEntry{Status: LedgerStatusCompleted, RecordsImported: 0},
			checksum: "",
			want:     false,
		},
		{
			name:     "failed entry forces reprocess",
			entry:    LedgerEntry{Status: LedgerStatusFailed, RecordsImported: 5},
			checksum: "",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Reusable(tt.checksum))
		})
	}
}

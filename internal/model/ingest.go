package model

import "time"

// JobStatus represents the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Closed reports whether the status is terminal.
func (s JobStatus) Closed() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one discovery-and-import run across all candidate export files
// found for a user. Created pending, moved to processing, closed exactly
// once to completed or failed.
type Job struct {
	ID              string     `json:"id"`
	UserID          int64      `json:"user_id"`
	JobType         string     `json:"job_type"`
	Status          JobStatus  `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	FilesFound      int        `json:"files_found"`
	FilesProcessed  int        `json:"files_processed"`
	RecordsImported int        `json:"records_imported"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// LedgerStatus represents the state of a processed-file ledger entry.
type LedgerStatus string

const (
	LedgerStatusProcessing LedgerStatus = "processing"
	LedgerStatusCompleted  LedgerStatus = "completed"
	LedgerStatusFailed     LedgerStatus = "failed"
)

// LedgerEntry records one import attempt for an external file. The
// (user_id, file_id) pair is unique; retried files get their stale entry
// deleted and a fresh one created rather than an in-place update.
type LedgerEntry struct {
	UserID          int64        `json:"user_id"`
	FileID          string       `json:"file_id"`
	FileName        string       `json:"file_name"`
	Checksum        string       `json:"checksum,omitempty"`
	Status          LedgerStatus `json:"status"`
	RecordsImported int          `json:"records_imported"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	ProcessedAt     time.Time    `json:"processed_at"`
}

// Reusable reports whether this entry lets a matching candidate be skipped:
// the prior import completed, actually imported rows, and either the
// candidate supplies no checksum or it matches the stored one.
func (e *LedgerEntry) Reusable(checksum string) bool {
	if e.Status != LedgerStatusCompleted || e.RecordsImported <= 0 {
		return false
	}
	return checksum == "" || e.Checksum == checksum
}

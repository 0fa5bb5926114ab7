package store

import (
	"context"
	"time"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// JobFilter specifies criteria for listing ingestion jobs.
type JobFilter struct {
	UserID int64           `json:"user_id,omitempty"`
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the health signal pipeline.
type Store interface {
	// Canonical signal records
	InsertSignalRecords(ctx context.Context, records []model.SignalRecord) (int, error)
	SignalValues(ctx context.Context, userID int64, signal string, since time.Time) ([]float64, error)
	SignalRecords(ctx context.Context, userID int64, since time.Time) ([]model.SignalRecord, error)
	RecordCountSince(ctx context.Context, userID int64, since time.Time) (int, error)
	LatestSignalValues(ctx context.Context, userID int64, since time.Time) (map[string]float64, error)

	// Baselines
	UpsertBaselines(ctx context.Context, baselines []model.Baseline) error
	DeleteBaseline(ctx context.Context, userID int64, signal string) error
	Baselines(ctx context.Context, userID int64) (map[string]model.Baseline, error)
	BaselineUserIDs(ctx context.Context) ([]int64, error)

	// Ingestion jobs
	CreateJob(ctx context.Context, userID int64, jobType string) (*model.Job, error)
	MarkJobProcessing(ctx context.Context, jobID string) error
	CloseJob(ctx context.Context, jobID string, status model.JobStatus, filesFound, filesProcessed, recordsImported int, errMsg string) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	// Processed-file ledger
	GetLedgerEntry(ctx context.Context, userID int64, fileID string) (*model.LedgerEntry, error)
	CreateLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error
	CompleteLedgerEntry(ctx context.Context, userID int64, fileID string, records int) error
	FailLedgerEntry(ctx context.Context, userID int64, fileID string, errMsg string) error
	DeleteLedgerEntry(ctx context.Context, userID int64, fileID string) error

	// Care scores
	InsertScore(ctx context.Context, score *model.Score) error
	LatestScore(ctx context.Context, userID int64) (*model.Score, error)
	ScoresSince(ctx context.Context, userID int64, since time.Time) ([]model.Score, error)

	// Notifications and care team
	CreateNotifications(ctx context.Context, notifs []model.Notification) error
	Notifications(ctx context.Context, userID int64, limit int) ([]model.Notification, error)
	AcceptedCareTeam(ctx context.Context, patientID int64) ([]model.CareLink, error)
	UpsertCareLink(ctx context.Context, link model.CareLink) error
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	UpsertUser(ctx context.Context, user model.User) error

	// Per-user sync lock; release must always be called when err is nil.
	AcquireSyncLock(ctx context.Context, userID int64) (release func(), err error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

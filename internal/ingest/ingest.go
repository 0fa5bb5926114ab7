// Package ingest coordinates one discovery-and-import run for a user: find
// export archives at the configured source, download each new or changed
// file, parse it, and write the canonical records, tracking progress in the
// job and processed-file ledger tables. Runs are idempotent; re-invoking
// sync after any failure is always safe.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/primary-workspace/pulseai-hackshodh/internal/export"
	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
	"github.com/primary-workspace/pulseai-hackshodh/internal/source"
	"github.com/primary-workspace/pulseai-hackshodh/internal/store"
)

// ErrSyncBusy re-exports the store sentinel so callers can match it without
// importing the store package.
var ErrSyncBusy = store.ErrSyncBusy

const (
	jobTypeSync = "sync"

	defaultDownloadTimeout = 120 * time.Second
)

// JobStore is the slice of the store the coordinator drives.
type JobStore interface {
	AcquireSyncLock(ctx context.Context, userID int64) (func(), error)
	CreateJob(ctx context.Context, userID int64, jobType string) (*model.Job, error)
	MarkJobProcessing(ctx context.Context, jobID string) error
	CloseJob(ctx context.Context, jobID string, status model.JobStatus, filesFound, filesProcessed, recordsImported int, errMsg string) error
	GetLedgerEntry(ctx context.Context, userID int64, fileID string) (*model.LedgerEntry, error)
	CreateLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error
	CompleteLedgerEntry(ctx context.Context, userID int64, fileID string, records int) error
	FailLedgerEntry(ctx context.Context, userID int64, fileID string, errMsg string) error
	DeleteLedgerEntry(ctx context.Context, userID int64, fileID string) error
}

// RecordSink normalizes and persists parsed records. Implemented by
// normalize.Writer.
type RecordSink interface {
	Write(ctx context.Context, records []model.SignalRecord) (int, error)
}

// Coordinator runs sync jobs against one source adapter.
type Coordinator struct {
	store   JobStore
	src     source.Adapter
	sink    RecordSink
	timeout time.Duration

	parse func(ctx context.Context, archive []byte, userID int64) (*export.Result, error)
}

// New builds a Coordinator. downloadTimeout caps each file download;
// zero or negative selects the 120s default.
func New(jobs JobStore, src source.Adapter, sink RecordSink, downloadTimeout time.Duration) *Coordinator {
	if downloadTimeout <= 0 {
		downloadTimeout = defaultDownloadTimeout
	}
	return &Coordinator{
		store:   jobs,
		src:     src,
		sink:    sink,
		timeout: downloadTimeout,
		parse:   export.Parse,
	}
}

// Sync discovers and imports every candidate export file for a user. The
// returned job carries the final counters. Per-file failures are recorded
// in the ledger and never fail the job; only lock contention, job
// bookkeeping, and discovery errors do.
func (c *Coordinator) Sync(ctx context.Context, userID int64) (*model.Job, error) {
	release, err := c.store.AcquireSyncLock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	job, err := c.store.CreateJob(ctx, userID, jobTypeSync)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: create job for user %d", userID)
	}
	if err := c.store.MarkJobProcessing(ctx, job.ID); err != nil {
		wrapped := eris.Wrapf(err, "ingest: mark job %s processing", job.ID)
		c.closeJob(ctx, job, model.JobStatusFailed, 0, 0, 0, wrapped.Error())
		return job, wrapped
	}
	job.Status = model.JobStatusProcessing

	var (
		found, processed, imported int
		jobErr                     error
	)
	// The job row closes exactly once on every path out of this function.
	defer func() {
		status := model.JobStatusCompleted
		msg := ""
		if jobErr != nil {
			status = model.JobStatusFailed
			msg = jobErr.Error()
		}
		c.closeJob(ctx, job, status, found, processed, imported, msg)
	}()

	c.probeAccount(ctx, userID)

	files, err := c.discover(ctx, userID)
	if err != nil {
		jobErr = err
		return job, jobErr
	}
	found = len(files)
	zap.L().Info("discovery finished",
		zap.Int64("user_id", userID),
		zap.String("job_id", job.ID),
		zap.Int("candidates", found))

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			jobErr = err
			return job, jobErr
		}
		records, ok := c.processFile(ctx, userID, file)
		imported += records
		if ok {
			processed++
		}
	}

	return job, nil
}

// processFile runs the ledger-guarded import of one candidate. It returns
// the written record count and whether the file counts as processed this
// run; skipped and failed files return false.
func (c *Coordinator) processFile(ctx context.Context, userID int64, file source.File) (int, bool) {
	entry, err := c.store.GetLedgerEntry(ctx, userID, file.ID)
	if err != nil {
		zap.L().Warn("ledger lookup failed",
			zap.Int64("user_id", userID),
			zap.String("file_id", file.ID),
			zap.Error(err))
		return 0, false
	}
	if entry != nil {
		if entry.Reusable(file.Checksum) {
			zap.L().Debug("file unchanged, skipping",
				zap.Int64("user_id", userID),
				zap.String("file", file.Name))
			return 0, false
		}
		if err := c.store.DeleteLedgerEntry(ctx, userID, file.ID); err != nil {
			zap.L().Warn("stale ledger entry not deleted",
				zap.String("file_id", file.ID),
				zap.Error(err))
			return 0, false
		}
	}

	fresh := &model.LedgerEntry{
		UserID:   userID,
		FileID:   file.ID,
		FileName: file.Name,
		Checksum: file.Checksum,
		Status:   model.LedgerStatusProcessing,
	}
	if err := c.store.CreateLedgerEntry(ctx, fresh); err != nil {
		zap.L().Warn("ledger entry not created",
			zap.String("file_id", file.ID),
			zap.Error(err))
		return 0, false
	}

	data, err := c.download(ctx, userID, file.ID)
	if err != nil {
		c.failFile(ctx, userID, file, eris.Wrap(err, "download"))
		return 0, false
	}
	if fresh.Checksum == "" {
		c.stampChecksum(ctx, fresh, data)
	}

	result, err := c.parse(ctx, data, userID)
	if err != nil {
		c.failFile(ctx, userID, file, eris.Wrap(err, "parse"))
		return 0, false
	}
	for _, catErr := range result.Errors {
		zap.L().Warn("export category failed",
			zap.String("file_id", file.ID),
			zap.String("table", catErr.Table),
			zap.Error(catErr.Err))
	}

	written, err := c.sink.Write(ctx, result.Records)
	if err != nil {
		c.failFile(ctx, userID, file, eris.Wrap(err, "write records"))
		return 0, false
	}

	if err := c.store.CompleteLedgerEntry(ctx, userID, file.ID, written); err != nil {
		zap.L().Warn("ledger entry not completed",
			zap.String("file_id", file.ID),
			zap.Error(err))
	}
	zap.L().Info("file imported",
		zap.Int64("user_id", userID),
		zap.String("file", file.Name),
		zap.Int("records", written))
	return written, true
}

func (c *Coordinator) download(ctx context.Context, userID int64, fileID string) ([]byte, error) {
	dctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.src.Download(dctx, userID, fileID)
}

// stampChecksum fills a content digest for backends whose listings carry no
// checksum. The ledger never updates in place, so the processing entry is
// recreated with the digest.
func (c *Coordinator) stampChecksum(ctx context.Context, entry *model.LedgerEntry, data []byte) {
	sum := sha256.Sum256(data)
	entry.Checksum = hex.EncodeToString(sum[:])
	if err := c.store.DeleteLedgerEntry(ctx, entry.UserID, entry.FileID); err != nil {
		zap.L().Warn("checksum stamp failed", zap.String("file_id", entry.FileID), zap.Error(err))
		entry.Checksum = ""
		return
	}
	if err := c.store.CreateLedgerEntry(ctx, entry); err != nil {
		zap.L().Warn("checksum stamp failed", zap.String("file_id", entry.FileID), zap.Error(err))
	}
}

func (c *Coordinator) failFile(ctx context.Context, userID int64, file source.File, ferr error) {
	zap.L().Warn("file import failed",
		zap.Int64("user_id", userID),
		zap.String("file", file.Name),
		zap.Error(ferr))
	if err := c.store.FailLedgerEntry(ctx, userID, file.ID, ferr.Error()); err != nil {
		zap.L().Warn("ledger entry not failed",
			zap.String("file_id", file.ID),
			zap.Error(err))
	}
}

// closeJob persists the terminal state and mirrors it onto the in-memory
// job for the caller. Uses a cancel-free context so a canceled sync still
// leaves a closed job row.
func (c *Coordinator) closeJob(ctx context.Context, job *model.Job, status model.JobStatus, found, processed, imported int, msg string) {
	if err := c.store.CloseJob(context.WithoutCancel(ctx), job.ID, status, found, processed, imported, msg); err != nil {
		zap.L().Error("job close failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	job.Status = status
	job.FilesFound = found
	job.FilesProcessed = processed
	job.RecordsImported = imported
	job.ErrorMessage = msg
}

// probeAccount logs which upstream account the user's credential resolves
// to, when the adapter can tell and debug logging is on.
func (c *Coordinator) probeAccount(ctx context.Context, userID int64) {
	if !zap.L().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	ident, ok := c.src.(source.Identifier)
	if !ok {
		return
	}
	email, err := ident.AccountEmail(ctx, userID)
	if err != nil {
		zap.L().Debug("account probe failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	zap.L().Debug("export account resolved", zap.Int64("user_id", userID), zap.String("account", email))
}

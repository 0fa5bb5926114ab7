package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// --- Signal records ---

func TestSQLite_InsertManyRecords(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := make([]model.SignalRecord, 0, 250)
	for i := 0; i < 250; i++ {
		records = append(records, model.SignalRecord{
			UserID:     7,
			RecordedAt: now.Add(-time.Duration(i) * time.Minute),
			Source:     "health_connect",
			HeartRate:  model.Float(60 + float64(i%30)),
		})
	}

	n, err := st.InsertSignalRecords(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	count, err := st.RecordCountSince(ctx, 7, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 250, count)
}

func TestSQLite_InsertRecords_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.InsertSignalRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_LatestSignalValues_PrefersNewest(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := st.InsertSignalRecords(ctx, []model.SignalRecord{
		{UserID: 7, RecordedAt: now.Add(-3 * time.Hour), BPSystolic: model.Float(118), BPDiastolic: model.Float(76)},
		{UserID: 7, RecordedAt: now.Add(-1 * time.Hour), BPSystolic: model.Float(142)},
	})
	require.NoError(t, err)

	latest, err := st.LatestSignalValues(ctx, 7, now.Add(-48*time.Hour))
	require.NoError(t, err)
	// Newest systolic wins; diastolic falls back to the older record.
	assert.Equal(t, 142.0, latest[model.SignalBPSystolic])
	assert.Equal(t, 76.0, latest[model.SignalBPDiastolic])
}

func TestSQLite_LatestSignalValues_WindowExcludesOld(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := st.InsertSignalRecords(ctx, []model.SignalRecord{
		{UserID: 7, RecordedAt: now.Add(-72 * time.Hour), HeartRate: model.Float(70)},
	})
	require.NoError(t, err)

	latest, err := st.LatestSignalValues(ctx, 7, now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, latest)
}

// --- Baselines ---

func TestSQLite_Baselines_ComputedAtDefaulted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.UpsertBaselines(ctx, []model.Baseline{
		{UserID: 7, Signal: model.SignalHeartRate, Mean: 70, StdDev: 5, SampleCount: 10},
	})
	require.NoError(t, err)

	baselines, err := st.Baselines(ctx, 7)
	require.NoError(t, err)
	b := baselines[model.SignalHeartRate]
	assert.WithinDuration(t, time.Now().UTC(), b.ComputedAt, 5*time.Second)
}

func TestSQLite_Baselines_EmptyUpsertNoop(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.UpsertBaselines(context.Background(), nil))
}

// --- Jobs ---

func TestSQLite_CloseJobFailed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, 7, "source_sync")
	require.NoError(t, err)
	require.NoError(t, st.MarkJobProcessing(ctx, job.ID))
	require.NoError(t, st.CloseJob(ctx, job.ID, model.JobStatusFailed, 0, 0, 0, "drive: list files: rate limited"))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, "drive: list files: rate limited", got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.After(got.StartedAt) || got.CompletedAt.Equal(got.StartedAt))
}

func TestSQLite_ListJobs_MostRecentFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := st.CreateJob(ctx, 7, "source_sync")
		require.NoError(t, err)
		ids = append(ids, job.ID)
		// Distinct start times so ordering is deterministic.
		_, err = st.db.ExecContext(ctx, `UPDATE ingestion_jobs SET started_at = ? WHERE id = ?`,
			time.Now().UTC().Add(time.Duration(i)*time.Minute), job.ID)
		require.NoError(t, err)
	}

	jobs, err := st.ListJobs(ctx, JobFilter{UserID: 7})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, ids[2], jobs[0].ID)
	assert.Equal(t, ids[0], jobs[2].ID)
}

// --- Scores ---

func TestSQLite_ScoresSince_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	scores, err := st.ScoresSince(context.Background(), 7, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestSQLite_ScoreHistoryAnomalyCount(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Mixed history: three anomalous scores (>= 31) and two calm ones.
	for i, agg := range []float64{45, 20, 33, 31, 12} {
		require.NoError(t, st.InsertScore(ctx, &model.Score{
			UserID:     7,
			ComputedAt: now.Add(-time.Duration(i+1) * time.Hour),
			Aggregate:  agg,
			Status:     model.StatusMild,
		}))
	}

	scores, err := st.ScoresSince(ctx, 7, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, scores, 5)

	anomalies := 0
	for _, sc := range scores {
		if sc.Aggregate >= 31 {
			anomalies++
		}
	}
	assert.Equal(t, 3, anomalies)
}

// --- Ledger ---

func TestSQLite_GetLedgerEntry_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	entry, err := st.GetLedgerEntry(context.Background(), 7, "never-seen")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSQLite_CompleteLedgerEntry_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteLedgerEntry(context.Background(), 7, "never-seen", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_LedgerManyFiles(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		fileID := fmt.Sprintf("file-%d", i)
		require.NoError(t, st.CreateLedgerEntry(ctx, &model.LedgerEntry{UserID: 7, FileID: fileID}))
		if i%2 == 0 {
			require.NoError(t, st.CompleteLedgerEntry(ctx, 7, fileID, i*10))
		} else {
			require.NoError(t, st.FailLedgerEntry(ctx, 7, fileID, "parse error"))
		}
	}

	completed, err := st.GetLedgerEntry(ctx, 7, "file-4")
	require.NoError(t, err)
	assert.Equal(t, model.LedgerStatusCompleted, completed.Status)
	assert.Equal(t, 40, completed.RecordsImported)

	failed, err := st.GetLedgerEntry(ctx, 7, "file-5")
	require.NoError(t, err)
	assert.Equal(t, model.LedgerStatusFailed, failed.Status)
}

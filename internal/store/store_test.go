package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("InsertAndReadSignalRecords", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()

		records := []model.SignalRecord{
			{UserID: 7, RecordedAt: now.Add(-3 * time.Hour), Source: "health_connect", HeartRate: model.Float(74)},
			{UserID: 7, RecordedAt: now.Add(-2 * time.Hour), Source: "health_connect", HeartRate: model.Float(72), Steps: model.Int(4000)},
			{UserID: 7, RecordedAt: now.Add(-1 * time.Hour), Source: "health_connect", HeartRate: model.Float(70)},
		}
		n, err := s.InsertSignalRecords(ctx, records)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		values, err := s.SignalValues(ctx, 7, model.SignalHeartRate, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []float64{74, 72, 70}, values)

		count, err := s.RecordCountSince(ctx, 7, now.Add(-150*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		latest, err := s.LatestSignalValues(ctx, 7, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 70.0, latest[model.SignalHeartRate])
		assert.Equal(t, 4000.0, latest[model.SignalSteps])

		all, err := s.SignalRecords(ctx, 7, now.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "health_connect", all[0].Source)
		assert.Nil(t, all[0].Steps)
		require.NotNil(t, all[1].Steps)
		assert.Equal(t, int64(4000), *all[1].Steps)
		assert.True(t, all[0].RecordedAt.Before(all[2].RecordedAt))
	})

	t.Run("SignalValues_UnknownSignal", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.SignalValues(ctx, 7, "blood_type", time.Now().Add(-time.Hour))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown signal")
	})

	t.Run("UpsertAndGetBaselines", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		err := s.UpsertBaselines(ctx, []model.Baseline{
			{UserID: 7, Signal: model.SignalHeartRate, Mean: 70, StdDev: 5, SampleCount: 30},
			{UserID: 7, Signal: model.SignalBloodSugar, Mean: 95, StdDev: 10, SampleCount: 12},
		})
		require.NoError(t, err)

		baselines, err := s.Baselines(ctx, 7)
		require.NoError(t, err)
		require.Len(t, baselines, 2)
		assert.Equal(t, 70.0, baselines[model.SignalHeartRate].Mean)
		assert.Equal(t, 12, baselines[model.SignalBloodSugar].SampleCount)

		// Upserting the same signal replaces the row.
		err = s.UpsertBaselines(ctx, []model.Baseline{
			{UserID: 7, Signal: model.SignalHeartRate, Mean: 72, StdDev: 4, SampleCount: 45},
		})
		require.NoError(t, err)

		baselines, err = s.Baselines(ctx, 7)
		require.NoError(t, err)
		require.Len(t, baselines, 2)
		assert.Equal(t, 72.0, baselines[model.SignalHeartRate].Mean)
		assert.Equal(t, 45, baselines[model.SignalHeartRate].SampleCount)
	})

	t.Run("DeleteBaseline", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		err := s.UpsertBaselines(ctx, []model.Baseline{
			{UserID: 7, Signal: model.SignalHRV, Mean: 50, StdDev: 8, SampleCount: 20},
		})
		require.NoError(t, err)

		require.NoError(t, s.DeleteBaseline(ctx, 7, model.SignalHRV))

		baselines, err := s.Baselines(ctx, 7)
		require.NoError(t, err)
		assert.Empty(t, baselines)
	})

	t.Run("BaselineUserIDs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ids, err := s.BaselineUserIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		err = s.UpsertBaselines(ctx, []model.Baseline{
			{UserID: 9, Signal: model.SignalHeartRate, Mean: 70, StdDev: 5, SampleCount: 30},
			{UserID: 9, Signal: model.SignalHRV, Mean: 50, StdDev: 8, SampleCount: 30},
			{UserID: 3, Signal: model.SignalHeartRate, Mean: 64, StdDev: 4, SampleCount: 14},
		})
		require.NoError(t, err)

		ids, err = s.BaselineUserIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 9}, ids)
	})

	t.Run("JobLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		job, err := s.CreateJob(ctx, 7, "source_sync")
		require.NoError(t, err)
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, model.JobStatusPending, job.Status)

		require.NoError(t, s.MarkJobProcessing(ctx, job.ID))

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.JobStatusProcessing, got.Status)
		assert.Nil(t, got.CompletedAt)

		err = s.CloseJob(ctx, job.ID, model.JobStatusCompleted, 3, 2, 150, "")
		require.NoError(t, err)

		got, err = s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.JobStatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, 3, got.FilesFound)
		assert.Equal(t, 2, got.FilesProcessed)
		assert.Equal(t, 150, got.RecordsImported)
	})

	t.Run("CloseJob_AlreadyClosed", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		job, err := s.CreateJob(ctx, 7, "source_sync")
		require.NoError(t, err)
		require.NoError(t, s.CloseJob(ctx, job.ID, model.JobStatusFailed, 0, 0, 0, "discovery failed"))

		// Closed jobs stay closed; a second close is rejected.
		err = s.CloseJob(ctx, job.ID, model.JobStatusCompleted, 1, 1, 10, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		assert.Equal(t, "discovery failed", got.ErrorMessage)
	})

	t.Run("CloseJob_NonTerminalStatus", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		job, err := s.CreateJob(ctx, 7, "source_sync")
		require.NoError(t, err)

		err = s.CloseJob(ctx, job.ID, model.JobStatusProcessing, 0, 0, 0, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-terminal")
	})

	t.Run("MarkJobProcessing_NotPending", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		job, err := s.CreateJob(ctx, 7, "source_sync")
		require.NoError(t, err)
		require.NoError(t, s.CloseJob(ctx, job.ID, model.JobStatusCompleted, 0, 0, 0, ""))

		err = s.MarkJobProcessing(ctx, job.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("GetJob_NotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		got, err := s.GetJob(ctx, "nonexistent")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ListJobs_FilterAndLimit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		j1, err := s.CreateJob(ctx, 1, "source_sync")
		require.NoError(t, err)
		_, err = s.CreateJob(ctx, 2, "source_sync")
		require.NoError(t, err)
		require.NoError(t, s.CloseJob(ctx, j1.ID, model.JobStatusCompleted, 1, 1, 5, ""))

		jobs, err := s.ListJobs(ctx, JobFilter{UserID: 1})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, j1.ID, jobs[0].ID)

		jobs, err = s.ListJobs(ctx, JobFilter{Status: model.JobStatusPending})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.EqualValues(t, 2, jobs[0].UserID)

		jobs, err = s.ListJobs(ctx, JobFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})

	t.Run("LedgerLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		entry := &model.LedgerEntry{UserID: 7, FileID: "file-1", FileName: "Health Connect.zip", Checksum: "abc123"}
		require.NoError(t, s.CreateLedgerEntry(ctx, entry))

		got, err := s.GetLedgerEntry(ctx, 7, "file-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.LedgerStatusProcessing, got.Status)
		assert.Equal(t, "abc123", got.Checksum)
		assert.False(t, got.Reusable("abc123"))

		require.NoError(t, s.CompleteLedgerEntry(ctx, 7, "file-1", 42))

		got, err = s.GetLedgerEntry(ctx, 7, "file-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.LedgerStatusCompleted, got.Status)
		assert.Equal(t, 42, got.RecordsImported)
		assert.True(t, got.Reusable("abc123"))
		assert.True(t, got.Reusable(""))
		assert.False(t, got.Reusable("different"))

		require.NoError(t, s.DeleteLedgerEntry(ctx, 7, "file-1"))

		got, err = s.GetLedgerEntry(ctx, 7, "file-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("FailLedgerEntry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		entry := &model.LedgerEntry{UserID: 7, FileID: "file-2", FileName: "fit_export.zip"}
		require.NoError(t, s.CreateLedgerEntry(ctx, entry))
		require.NoError(t, s.FailLedgerEntry(ctx, 7, "file-2", "no embedded database"))

		got, err := s.GetLedgerEntry(ctx, 7, "file-2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.LedgerStatusFailed, got.Status)
		assert.Equal(t, "no embedded database", got.ErrorMessage)
		assert.False(t, got.Reusable(""))
	})

	t.Run("ScoreRoundtrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()

		score := &model.Score{
			UserID:      7,
			ComputedAt:  now,
			Severity:    26.7,
			CrossSignal: 3,
			Aggregate:   29.7,
			Drift:       100,
			Confidence:  9.5,
			Stability:   50,
			Status:      model.StatusStable,
			Deviations: []model.Deviation{
				{Signal: model.SignalHeartRate, Current: 95, Baseline: 70, ZScore: 5, Level: model.LevelSevere, Weighted: 6},
			},
			Explanation: "Your health signals show notable changes that warrant attention.",
		}
		require.NoError(t, s.InsertScore(ctx, score))
		assert.NotEmpty(t, score.ID)

		got, err := s.LatestScore(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, score.ID, got.ID)
		assert.Equal(t, 29.7, got.Aggregate)
		assert.Equal(t, model.StatusStable, got.Status)
		require.Len(t, got.Deviations, 1)
		assert.Equal(t, model.SignalHeartRate, got.Deviations[0].Signal)
		assert.Equal(t, 5.0, got.Deviations[0].ZScore)
		assert.WithinDuration(t, now, got.ComputedAt, time.Second)
	})

	t.Run("LatestScore_None", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		got, err := s.LatestScore(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ScoresSince_WindowAndOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()

		for i, agg := range []float64{20, 35, 40} {
			require.NoError(t, s.InsertScore(ctx, &model.Score{
				UserID:     7,
				ComputedAt: now.Add(-time.Duration(i*24) * time.Hour),
				Aggregate:  agg,
				Status:     model.StatusMild,
			}))
		}

		scores, err := s.ScoresSince(ctx, 7, now.Add(-36*time.Hour))
		require.NoError(t, err)
		require.Len(t, scores, 2)
		assert.Equal(t, 20.0, scores[0].Aggregate)
		assert.Equal(t, 35.0, scores[1].Aggregate)
	})

	t.Run("NotificationsBatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		patientID := int64(7)
		err := s.CreateNotifications(ctx, []model.Notification{
			{UserID: 7, Type: model.NotifyAnomaly, Title: "Health Alert: High Risk", Priority: model.PriorityCritical},
			{UserID: 20, Type: model.NotifyPatientAnomaly, Title: "Patient Alert: Asha", Priority: model.PriorityCritical, RelatedUserID: &patientID},
			{UserID: 30, Type: model.NotifyPatientAlert, Title: "Alert: Asha", Priority: model.PriorityCritical, RelatedUserID: &patientID},
		})
		require.NoError(t, err)

		notifs, err := s.Notifications(ctx, 20, 10)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, model.NotifyPatientAnomaly, notifs[0].Type)
		require.NotNil(t, notifs[0].RelatedUserID)
		assert.EqualValues(t, 7, *notifs[0].RelatedUserID)
		assert.False(t, notifs[0].IsRead)
	})

	t.Run("AcceptedCareTeam_FiltersAndOrders", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.UpsertCareLink(ctx, model.CareLink{PatientID: 7, MemberID: 30, Role: model.RoleCaretaker, Status: model.LinkAccepted, AccessLevel: "view"}))
		require.NoError(t, s.UpsertCareLink(ctx, model.CareLink{PatientID: 7, MemberID: 20, Role: model.RoleDoctor, Status: model.LinkAccepted, AccessLevel: "full"}))
		require.NoError(t, s.UpsertCareLink(ctx, model.CareLink{PatientID: 7, MemberID: 40, Role: model.RoleDoctor, Status: model.LinkPending, AccessLevel: "view"}))

		links, err := s.AcceptedCareTeam(ctx, 7)
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, model.RoleDoctor, links[0].Role)
		assert.EqualValues(t, 20, links[0].MemberID)
		assert.Equal(t, model.RoleCaretaker, links[1].Role)
	})

	t.Run("UpsertCareLink_UpdatesStatus", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		link := model.CareLink{PatientID: 7, MemberID: 20, Role: model.RoleDoctor, Status: model.LinkPending, AccessLevel: "view"}
		require.NoError(t, s.UpsertCareLink(ctx, link))

		links, err := s.AcceptedCareTeam(ctx, 7)
		require.NoError(t, err)
		assert.Empty(t, links)

		link.Status = model.LinkAccepted
		require.NoError(t, s.UpsertCareLink(ctx, link))

		links, err = s.AcceptedCareTeam(ctx, 7)
		require.NoError(t, err)
		assert.Len(t, links, 1)
	})

	t.Run("Users", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		got, err := s.GetUser(ctx, 7)
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, s.UpsertUser(ctx, model.User{ID: 7, Name: "Asha", Role: "patient"}))

		got, err = s.GetUser(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Asha", got.Name)
	})

	t.Run("SyncLock_Exclusive", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		release, err := s.AcquireSyncLock(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, release)

		_, err = s.AcquireSyncLock(ctx, 7)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSyncBusy))

		// A different user is unaffected.
		release2, err := s.AcquireSyncLock(ctx, 8)
		require.NoError(t, err)
		release2()

		release()

		release3, err := s.AcquireSyncLock(ctx, 7)
		require.NoError(t, err)
		release3()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

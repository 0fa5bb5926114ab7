package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
	"github.com/primary-workspace/pulseai-hackshodh/internal/resilience"
)

var (
	syncUser  int64
	syncRetry bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Discover and import a user's export archives",
	Long: `Runs one discovery-and-import pass for a user: lists candidate export
files at the configured source, downloads each new or changed file, parses the
embedded health database, and writes canonical signal records.

Runs are idempotent; already-imported files are skipped via the processed-file
ledger. With --retry, a sync that fails on a transient source error is retried
whole with exponential backoff (sync.retry.* config keys tune the schedule).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		src, err := initSource(ctx)
		if err != nil {
			return err
		}
		coord, err := initCoordinator(st, src)
		if err != nil {
			return err
		}

		run := func(ctx context.Context) (*model.Job, error) {
			return coord.Sync(ctx, syncUser)
		}

		var job *model.Job
		if syncRetry {
			job, err = resilience.DoVal(ctx, syncRetryConfig(), run)
		} else {
			job, err = run(ctx)
		}
		if err != nil {
			return eris.Wrapf(err, "sync user %d", syncUser)
		}

		zap.L().Info("sync complete",
			zap.Int64("user_id", syncUser),
			zap.String("job_id", job.ID),
			zap.String("status", string(job.Status)),
			zap.Int("files_found", job.FilesFound),
			zap.Int("files_processed", job.FilesProcessed),
			zap.Int("records_imported", job.RecordsImported),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

// syncRetryConfig maps the sync.retry.* settings onto the retry helper,
// keeping defaults for anything left at zero.
func syncRetryConfig() resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if cfg.Sync.Retry.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.Sync.Retry.MaxAttempts
	}
	if cfg.Sync.Retry.InitialBackoffMs > 0 {
		rc.InitialBackoff = time.Duration(cfg.Sync.Retry.InitialBackoffMs) * time.Millisecond
	}
	if cfg.Sync.Retry.MaxBackoffMs > 0 {
		rc.MaxBackoff = time.Duration(cfg.Sync.Retry.MaxBackoffMs) * time.Millisecond
	}
	rc.OnRetry = func(attempt int, err error) {
		zap.L().Warn("retrying sync",
			zap.Int("attempt", attempt),
			zap.Int64("user_id", syncUser),
			zap.Error(err),
		)
	}
	return rc
}

func init() {
	syncCmd.Flags().Int64Var(&syncUser, "user", 0, "user ID to sync (required)")
	syncCmd.Flags().BoolVar(&syncRetry, "retry", false, "retry the whole sync on transient source errors")
	_ = syncCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(syncCmd)
}

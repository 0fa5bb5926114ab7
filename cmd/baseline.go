package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/baseline"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage per-user baseline statistics",
}

var (
	baselineUser   int64
	baselineWindow int
)

var baselineRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute a user's baselines from the trailing window",
	Long: `Recomputes mean, standard deviation, and sample count for every
baselined signal from the trailing window of canonical records. Signals with
no samples in the window get their stale baseline row deleted.`,
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

		fresh, err := baseline.NewCalculator(st).Refresh(ctx, baselineUser, baselineWindow)
		if err != nil {
			return eris.Wrapf(err, "refresh baselines for user %d", baselineUser)
		}

		zap.L().Info("baseline refresh complete",
			zap.Int64("user_id", baselineUser),
			zap.Int("window_days", baselineWindow),
			zap.Int("baselines", len(fresh)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(fresh)
	},
}

func init() {
	baselineRefreshCmd.Flags().Int64Var(&baselineUser, "user", 0, "user ID to refresh (required)")
	baselineRefreshCmd.Flags().IntVar(&baselineWindow, "window", baseline.DefaultWindowDays, "trailing window in days")
	_ = baselineRefreshCmd.MarkFlagRequired("user")

	baselineCmd.AddCommand(baselineRefreshCmd)
	rootCmd.AddCommand(baselineCmd)
}

package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/report"
)

var (
	exportUser   int64
	exportOut    string
	exportWindow int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a user's signal history to an XLSX workbook",
	Long: `Writes a three-sheet workbook: Signals (one row per canonical record),
Scores (score history with components), and Baselines. The window bounds the
signal and score history; baselines are always the current rows.`,
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

		since := time.Now().UTC().AddDate(0, 0, -exportWindow)
		if err := report.WriteWorkbook(ctx, st, exportUser, since, exportOut); err != nil {
			return eris.Wrapf(err, "export user %d", exportUser)
		}

		zap.L().Info("workbook written",
			zap.Int64("user_id", exportUser),
			zap.String("path", exportOut),
			zap.Int("window_days", exportWindow),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().Int64Var(&exportUser, "user", 0, "user ID to export (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "care.xlsx", "output workbook path")
	exportCmd.Flags().IntVar(&exportWindow, "window", 90, "history window in days")
	_ = exportCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(exportCmd)
}

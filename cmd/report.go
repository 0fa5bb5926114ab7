package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/report"
	"github.com/primary-workspace/pulseai-hackshodh/pkg/notion"
)

var reportUser int64

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Publish a care summary to Notion",
	Long: `Publishes the user's latest CareScore, status, top deviations, and
7-day trend to a page in the configured Notion database. Re-running on the
same day refreshes the existing page instead of creating a duplicate.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (PULSE_NOTION_TOKEN)")
		}
		if cfg.Notion.ReportDB == "" {
			return eris.New("notion report DB ID is required (PULSE_NOTION_REPORT_DB)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		publisher := report.NewPublisher(notion.NewClient(cfg.Notion.Token), cfg.Notion.ReportDB, st)
		pageID, err := publisher.PublishSummary(ctx, reportUser)
		if err != nil {
			return eris.Wrapf(err, "publish summary for user %d", reportUser)
		}

		zap.L().Info("care summary published",
			zap.Int64("user_id", reportUser),
			zap.String("page_id", pageID),
		)
		return nil
	},
}

func init() {
	reportCmd.Flags().Int64Var(&reportUser, "user", 0, "user ID to report on (required)")
	_ = reportCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(reportCmd)
}

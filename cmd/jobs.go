package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
	"github.com/primary-workspace/pulseai-hackshodh/internal/store"
)

var (
	jobsUser  int64
	jobsLimit int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent sync jobs",
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

		jobs, err := st.ListJobs(ctx, store.JobFilter{UserID: jobsUser, Limit: jobsLimit})
		if err != nil {
			return eris.Wrap(err, "list jobs")
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs found")
			return nil
		}

		formatJobsList(os.Stdout, jobs)
		return nil
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show one job document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs status")
		}
		if job == nil {
			return eris.Errorf("job %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

// formatJobsList writes a tabular job listing to out.
func formatJobsList(out io.Writer, jobs []model.Job) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tUSER\tSTATUS\tFILES\tRECORDS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t-------\t-------\t--------")

	for _, j := range jobs {
		dur := "-"
		if j.CompletedAt != nil {
			dur = j.CompletedAt.Sub(j.StartedAt).Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%d/%d\t%d\t%s\t%s\n",
			truncateID(j.ID),
			j.UserID,
			j.Status,
			j.FilesProcessed,
			j.FilesFound,
			j.RecordsImported,
			j.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	jobsCmd.Flags().Int64Var(&jobsUser, "user", 0, "filter by user ID")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 50, "max number of jobs to display")

	jobsCmd.AddCommand(jobsStatusCmd)
	rootCmd.AddCommand(jobsCmd)
}

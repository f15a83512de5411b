package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"go-catmat-matcher/internal/model"
	"go-catmat-matcher/internal/store"
)

func newJobsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List persisted jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			jobs, err := db.ListJobs(cmd.Context())
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATE\tRECORDS\tCATALOG\tCREATED\tNAME")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
					j.JobID, j.State, len(j.Records), j.CatalogVersion,
					j.CreatedAt.Local().Format(time.DateTime), j.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newEventsCmd() *cobra.Command {
	var from int
	cmd := &cobra.Command{
		Use:   "events JOB_ID",
		Short: "Replay the persisted event log of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			job, err := db.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			events, err := db.LoadEvents(cmd.Context(), job.JobID)
			if err != nil {
				return fmt.Errorf("load events: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, ev := range events {
				if ev.Seq < from {
					continue
				}
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
			stats := model.FoldStats(events)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s, %d/%d records, %d errors\n",
				job.JobID, job.State, stats.ProcessedCount, len(job.Records), stats.ErrorCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "first sequence number to print")
	return cmd
}

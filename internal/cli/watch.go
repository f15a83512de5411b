package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-catmat-matcher/internal/bus"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [JOB_ID]",
		Short: "Print job activity forwarded to NATS",
		Long: `Subscribe to the subjects matcher-api publishes on and print every
message as "<subject> <json>". Without JOB_ID all jobs are watched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.NATSURL == "" {
				return fmt.Errorf("NATS_URL is not set")
			}
			var jobID string
			if len(args) == 1 {
				jobID = args[0]
			}

			nc, err := bus.Connect(cfg.NATSURL, logger)
			if err != nil {
				return fmt.Errorf("connect to NATS: %w", err)
			}
			defer nc.Close()

			out := cmd.OutOrStdout()
			msgs := make(chan string, 64)
			subject := bus.NewForwarder(nc, cfg.NATSSubjectPrefix).Wildcard(jobID)
			sub, err := nc.SubscribeJSON(subject, func(ctx context.Context, subject string, data []byte) {
				select {
				case msgs <- subject + " " + string(data):
				case <-ctx.Done():
				}
			})
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", subject, err)
			}
			defer sub.Unsubscribe()
			logger.Info("watching", "subject", subject)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case m := <-msgs:
					fmt.Fprintln(out, m)
				}
			}
		},
	}
}

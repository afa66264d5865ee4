package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, aggregate, and render once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			report, err := a.newPipeline(out).Run(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nRun %s: %d dates, %d countries, %d quality flags\n",
				report.RunID, len(report.Snapshot.Totals), len(report.Snapshot.Summaries), len(report.Snapshot.Flags))
			for _, path := range report.Artifacts {
				fmt.Fprintf(out, "  wrote %s\n", path)
			}
			return nil
		},
	}
}

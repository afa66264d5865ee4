package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/covid-trends/internal/adapter/console"
	"github.com/couchcryptid/covid-trends/internal/domain"
	"github.com/couchcryptid/covid-trends/internal/pipeline"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fetch and aggregate, then report data-quality flags",
		Long: "check runs every stage except rendering and prints one line per quality rule.\n" +
			"Flags never change the exit status; fetch and schema errors do.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			analysis, err := a.newPipeline(nil).Analyze(ctx)
			if err != nil {
				return err
			}
			writeCheckReport(cmd.OutOrStdout(), analysis)
			return nil
		},
	}
}

// writeCheckReport prints per-dataset counts, a PASS/FLAGGED line per rule,
// and the flag details.
func writeCheckReport(w io.Writer, analysis pipeline.Analysis) {
	fmt.Fprintln(w, "=== COVID-19 Time Series Quality Check ===")
	fmt.Fprintln(w)

	for _, ds := range domain.Datasets {
		fmt.Fprintf(w, "  %-10s %8d observations, %d undated\n", ds, analysis.Observations[ds], analysis.Undated[ds])
	}
	fmt.Fprintln(w)

	byCheck := make(map[domain.QualityCheck]int, len(domain.QualityChecks))
	for _, f := range analysis.Snapshot.Flags {
		byCheck[f.Check]++
	}
	for _, c := range domain.QualityChecks {
		status := "\033[32mPASS\033[0m"
		if n := byCheck[c]; n > 0 {
			status = fmt.Sprintf("\033[33mFLAGGED (%d)\033[0m", n)
		}
		fmt.Fprintf(w, "  %-24s %s\n", c, status)
	}

	if len(analysis.Snapshot.Flags) == 0 {
		fmt.Fprintln(w, "\nNo data-quality flags.")
		return
	}
	fmt.Fprintln(w)
	console.WriteFlags(w, analysis.Snapshot.Flags)
}

// Command covidtrends downloads the CSSE COVID-19 global time series,
// aggregates them, and renders charts, a dashboard, a workbook, and a
// linear trend forecast.
//
// Usage:
//
//	covidtrends run              # one pass, artifacts under OUTPUT_DIR
//	covidtrends check            # fetch and report data-quality flags
//	covidtrends serve            # scheduled refresh plus HTTP endpoints
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "covidtrends",
		Short:         "covidtrends charts and forecasts the CSSE COVID-19 global time series.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("output-dir", "", "directory for rendered artifacts (overrides OUTPUT_DIR)")
	root.PersistentFlags().Int("top-n", 0, "countries in the top-N views (overrides TOP_N)")
	root.PersistentFlags().Int("forecast-days", 0, "days to extrapolate the trend (overrides FORECAST_DAYS)")

	root.AddCommand(newRunCmd(), newCheckCmd(), newServeCmd())
	return root
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/disposight/internal/monitoring"
)

var sourcesJSON bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show collector source health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		collector := monitoring.NewCollector(st, time.Duration(cfg.Monitoring.StaleAfterHours)*time.Hour)
		snap, err := collector.Collect(ctx, time.Now().UTC())
		if err != nil {
			return eris.Wrap(err, "collect source health")
		}

		if sourcesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tENABLED\tLAST RUN\tSTATUS\tSIGNALS\tERRORS\tSTALE")
		for _, src := range snap.Sources {
			lastRun := "never"
			if src.LastRunAt != nil {
				lastRun = fmt.Sprintf("%.1fh ago", src.HoursSinceRun)
			}
			fmt.Fprintf(w, "%s\t%v\t%s\t%s\t%d\t%d\t%v\n",
				src.SourceType, src.Enabled, lastRun, src.LastRunStatus,
				src.LastRunSignals, src.ConsecutiveErrs, src.Stale,
			)
		}
		if err := w.Flush(); err != nil {
			return eris.Wrap(err, "flush table")
		}

		fmt.Printf("\n%d healthy, %d failing, %d stale\n", snap.Healthy, snap.Failing, snap.Stale)
		return nil
	},
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(sourcesCmd)
}

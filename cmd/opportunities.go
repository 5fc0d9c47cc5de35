package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/disposight/internal/opportunity"
)

var (
	oppSignalType   string
	oppState        string
	oppIndustry     string
	oppMinDevices   int
	oppMinDealScore int
	oppSortBy       string
	oppLimit        int
	oppOffset       int
	oppJSON         bool
)

var opportunitiesCmd = &cobra.Command{
	Use:   "opportunities",
	Short: "List ranked asset-recovery opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		builder := opportunity.NewBuilder(st, cfg.Scoring.PricePerDevice, cfg.Scoring.MaxConcurrentCompanies)

		result, err := builder.List(ctx, opportunity.Query{
			SignalType:   oppSignalType,
			State:        oppState,
			Industry:     oppIndustry,
			MinDevices:   oppMinDevices,
			MinDealScore: oppMinDealScore,
			SortBy:       oppSortBy,
			Limit:        oppLimit,
			Offset:       oppOffset,
		}, time.Now().UTC())
		if err != nil {
			return eris.Wrap(err, "list opportunities")
		}

		if oppJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tBAND\tCOMPANY\tSTATE\tSIGNALS\tDEVICES\tVALUE\tWINDOW")
		for _, o := range result.Opportunities {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t$%.0f\t%s\n",
				o.DealScore, o.ScoreBand, o.CompanyName, o.HeadquartersState,
				o.SignalCount, o.TotalDeviceEstimate, o.RevenueEstimate, o.DispositionWindow,
			)
		}
		if err := w.Flush(); err != nil {
			return eris.Wrap(err, "flush table")
		}

		fmt.Printf("\n%d opportunities, %d devices, $%.0f pipeline value\n",
			result.Total, result.TotalDevices, result.TotalPipelineValue)
		return nil
	},
}

func init() {
	opportunitiesCmd.Flags().StringVar(&oppSignalType, "signal-type", "", "filter by signal type")
	opportunitiesCmd.Flags().StringVar(&oppState, "state", "", "filter by headquarters state")
	opportunitiesCmd.Flags().StringVar(&oppIndustry, "industry", "", "filter by industry")
	opportunitiesCmd.Flags().IntVar(&oppMinDevices, "min-devices", 0, "minimum total device estimate")
	opportunitiesCmd.Flags().IntVar(&oppMinDealScore, "min-deal-score", 0, "minimum deal score")
	opportunitiesCmd.Flags().StringVar(&oppSortBy, "sort", "deal_score", "sort key: deal_score, revenue, devices, recency")
	opportunitiesCmd.Flags().IntVar(&oppLimit, "limit", 25, "maximum rows to return")
	opportunitiesCmd.Flags().IntVar(&oppOffset, "offset", 0, "rows to skip")
	opportunitiesCmd.Flags().BoolVar(&oppJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(opportunitiesCmd)
}

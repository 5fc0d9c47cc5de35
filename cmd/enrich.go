package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/enrich"
	anthropicpkg "github.com/sells-group/disposight/pkg/anthropic"
	"github.com/sells-group/disposight/pkg/edgar"
)

var (
	enrichBatchSize int
	enrichBackfill  bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich pending companies from SEC EDGAR and Claude",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var ai anthropicpkg.Client
		if cfg.Anthropic.Key != "" {
			ai = anthropicpkg.NewClient(cfg.Anthropic.Key)
		} else {
			zap.L().Warn("no anthropic key configured, skipping LLM enrichment fallback")
		}

		enricher := enrich.New(st, edgar.NewClient(cfg.Edgar.UserAgent), ai, cfg.Anthropic.HaikuModel)

		var stats enrich.Stats
		if enrichBackfill {
			stats, err = enricher.Backfill(ctx, enrichBatchSize)
		} else {
			stats, err = enricher.EnrichPending(ctx, enrichBatchSize)
		}
		if err != nil {
			return eris.Wrap(err, "enrich companies")
		}

		zap.L().Info("enrichment complete", zap.String("stats", stats.String()))
		cmd.Println(stats.String())
		return nil
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichBatchSize, "batch-size", enrich.DefaultBatchSize, "companies per batch")
	enrichCmd.Flags().BoolVar(&enrichBackfill, "backfill", false, "loop until no pending companies remain")
	rootCmd.AddCommand(enrichCmd)
}

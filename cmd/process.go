package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/classify"
	"github.com/sells-group/disposight/internal/pipeline"
	anthropicpkg "github.com/sells-group/disposight/pkg/anthropic"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process one batch of raw events into signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		proc := pipeline.New(st, initClassifier()).WithBatchSize(cfg.Pipeline.BatchSize)

		result, err := proc.ProcessBatch(ctx, time.Now().UTC())
		if err != nil {
			return eris.Wrap(err, "process batch")
		}

		zap.L().Info("batch complete",
			zap.Int("processed", result.Processed),
			zap.Int("errors", result.Errors),
			zap.Int("duplicates_skipped", result.Duplicates),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// initClassifier builds the event classifier: Claude with a keyword-rule
// fallback when an API key is configured, rules alone otherwise.
func initClassifier() classify.Classifier {
	rules := classify.NewRuleClassifier()
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("no anthropic key configured, classifying with rules only")
		return rules
	}
	ai := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return classify.NewFallback(classify.NewLLMClassifier(ai, cfg.Anthropic.HaikuModel), rules)
}

func init() {
	rootCmd.AddCommand(processCmd)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/justify"
	"github.com/sells-group/disposight/internal/monitoring"
	"github.com/sells-group/disposight/internal/opportunity"
	"github.com/sells-group/disposight/internal/pipeline"
	anthropicpkg "github.com/sells-group/disposight/pkg/anthropic"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only API server and pipeline scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		builder := opportunity.NewBuilder(st, cfg.Scoring.PricePerDevice, cfg.Scoring.MaxConcurrentCompanies)
		collector := monitoring.NewCollector(st, time.Duration(cfg.Monitoring.StaleAfterHours)*time.Hour)

		var justifier *justify.Engine
		if cfg.Anthropic.Key != "" {
			ai := anthropicpkg.NewClient(cfg.Anthropic.Key)
			justifier = justify.NewEngine(st, ai, cfg.Anthropic.SonnetModel)
		}

		api := &apiServer{
			builder:   builder,
			justifier: justifier,
			collector: collector,
		}

		// Scheduled batch processing
		if !cfg.Pipeline.DisableScheduler {
			proc := pipeline.New(st, initClassifier()).WithBatchSize(cfg.Pipeline.BatchSize)
			scheduler := cron.New()
			_, err := scheduler.AddFunc(cfg.Pipeline.ScheduleCron, func() {
				result, err := proc.ProcessBatch(context.Background(), time.Now().UTC())
				if err != nil {
					zap.L().Error("scheduled batch failed", zap.Error(err))
					return
				}
				zap.L().Info("scheduled batch complete",
					zap.Int("processed", result.Processed),
					zap.Int("errors", result.Errors),
					zap.Int("duplicates_skipped", result.Duplicates),
				)
			})
			if err != nil {
				return eris.Wrapf(err, "invalid schedule %q", cfg.Pipeline.ScheduleCron)
			}
			scheduler.Start()
			defer scheduler.Stop()
			zap.L().Info("pipeline scheduler started", zap.String("schedule", cfg.Pipeline.ScheduleCron))
		}

		// Background source-health checks
		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/genomic-case-qc/internal/api"
	"github.com/genomic-case-qc/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the curation API",
	Long: `Serve exposes the override store for curation, stored verdicts and
metrics over HTTP. When schedule.cron is set, batches run periodically
over every case in the input source.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

var serveFlags = flagKeys{
	"host":     "server.host",
	"port":     "server.port",
	"schedule": "schedule.cron",
}

func init() {
	f := serveCmd.Flags()
	f.String("host", "", "listen host")
	f.Int("port", 0, "listen port")
	f.String("schedule", "", "cron expression for periodic batch runs")
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd, serveFlags)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.Schedule.Cron != "" {
		sched, err := pipeline.NewScheduler(cfg.Schedule.Cron, func(ctx context.Context) error {
			_, err := runBatch(ctx, cfg, c, logger, nil)
			return err
		}, logger)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	var verdicts api.VerdictReader
	if c.verdicts != nil {
		verdicts = c.verdicts
	}
	server := api.NewServer(cfg.Server, c.writer, verdicts, c.metrics, logger)

	logger.WithField("port", cfg.Server.Port).Info("Starting caseqc server")
	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info("caseqc server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/genomic-case-qc/internal/adapter"
	"github.com/genomic-case-qc/internal/cache"
	"github.com/genomic-case-qc/internal/config"
	"github.com/genomic-case-qc/internal/database"
	"github.com/genomic-case-qc/internal/documents"
	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/logging"
	"github.com/genomic-case-qc/internal/metrics"
	"github.com/genomic-case-qc/internal/overrides"
	"github.com/genomic-case-qc/internal/pipeline"
	"github.com/genomic-case-qc/internal/quality"
	"github.com/genomic-case-qc/internal/repository"
	"github.com/genomic-case-qc/internal/resolver"
	"github.com/genomic-case-qc/pkg/external"
	"github.com/genomic-case-qc/pkg/hgvs"
)

// flagKeys maps command flags onto configuration keys. Only flags set on the
// command line are applied.
type flagKeys map[string]string

// loadConfig reads and validates the configuration and builds the logger.
func loadConfig(cmd *cobra.Command, keys flagKeys) (*domain.Config, *logrus.Logger, error) {
	mgr, err := config.NewManager(configFile)
	if err != nil {
		return nil, nil, err
	}
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := mgr.Set(key, f.Value.String()); err != nil {
			return nil, nil, fmt.Errorf("applying --%s: %w", flag, err)
		}
	}
	if logLevel != "" {
		if err := mgr.Set("logging.level", logLevel); err != nil {
			return nil, nil, err
		}
	}
	if err := mgr.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := mgr.GetConfig()
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return cfg, logger, nil
}

// components are the long-lived pieces shared by run and serve.
type components struct {
	writer   *overrides.Writer
	verdicts *repository.VerdictRepository
	metrics  *metrics.Metrics
	runner   *pipeline.Runner

	closers []func()
}

// Close releases everything in reverse order of creation.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// openStore opens the override store with the configured driver.
func openStore(cfg domain.OverridesConfig, logger *logrus.Logger) (*overrides.Store, error) {
	if cfg.Driver == "sqlite" {
		return overrides.OpenSQLite(cfg.Path, cfg.MinVersion, logger)
	}
	return overrides.OpenFile(cfg.Path, cfg.MinVersion, logger)
}

// openSource returns the configured document source. With the s3 source,
// local documents fill in for objects missing from the bucket.
func openSource(ctx context.Context, cfg *domain.Config) (documents.Source, error) {
	local := documents.NewFileSource(cfg.Input.CaseDir, "")
	if cfg.Input.Source != "s3" {
		return local, nil
	}
	remote, err := documents.NewS3Source(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	return documents.Chain{remote, local}, nil
}

// build wires the override store, lookup clients, verdict database and the
// batch runner from cfg.
func build(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (_ *components, err error) {
	c := &components{metrics: metrics.New()}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	shape, err := adapter.ParseShape(cfg.Input.Schema)
	if err != nil {
		return nil, err
	}
	src, err := openSource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s source: %w", cfg.Input.Source, err)
	}

	store, err := openStore(cfg.Overrides, logger)
	if err != nil {
		return nil, fmt.Errorf("opening override store: %w", err)
	}
	c.closers = append(c.closers, func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("Closing override store failed")
		}
	})
	c.writer = overrides.NewWriter(store, 64, logger)
	c.closers = append(c.closers, c.writer.Close)

	lookups, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("creating lookup cache: %w", err)
	}
	c.closers = append(c.closers, func() { lookups.Close() })

	var rs resolver.RSLookup
	if cfg.Resolver.EnableRSLookup {
		rs = external.NewMutalyzerClient(cfg.External.Mutalyzer, lookups, logger)
	}
	var mapper quality.GeneMapper
	if cfg.External.OMIM.APIKey != "" {
		mapper = external.NewOMIMClient(cfg.External.OMIM, lookups, logger)
	}
	var projector pipeline.Projector
	if cfg.Pipeline.ProjectVCF {
		projector = external.NewVCFClient(cfg.External.VCF, logger)
	}

	var sink pipeline.VerdictSink
	if cfg.Database.Enabled {
		if err := migrate(ctx, cfg.Database, logger); err != nil {
			return nil, err
		}
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db.Close)
		c.verdicts = repository.NewVerdictRepository(db.SQL(), logger)
		sink = c.verdicts
	}

	c.runner = pipeline.NewRunner(pipeline.Config{
		Source:      src,
		Loader:      adapter.NewLoader(cfg.Input.OverrideDir, logger),
		Shape:       shape,
		CasesKind:   cfg.Input.CasesKind,
		EntriesKind: cfg.Input.EntriesKind,
		Resolver:    resolver.New(hgvs.NewParser(), c.writer, rs, logger),
		Mapper:      mapper,
		Gate: quality.NewGate(quality.Options{
			ConvertFailed: cfg.Quality.ConvertFailed,
			ExcludeBenign: cfg.Quality.ExcludeBenign,
		}, logger),
		Workers:   cfg.Pipeline.Workers,
		ExportDir: cfg.Pipeline.ExportDir,
		Projector: projector,
		Sink:      sink,
		Metrics:   c.metrics,
	}, logger)
	return c, nil
}

func migrate(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger) error {
	mr, err := database.NewMigrationRunner(cfg.URL, logger)
	if err != nil {
		return err
	}
	defer mr.Close()
	return mr.Up(ctx)
}

// runBatch runs one batch and records its results in the verdict log and,
// when enabled, the verdict database.
func runBatch(ctx context.Context, cfg *domain.Config, c *components, logger *logrus.Logger, caseIDs []string) (*pipeline.BatchReport, error) {
	report, err := c.runner.Run(ctx, caseIDs)
	if report == nil {
		return nil, err
	}

	if cfg.Pipeline.VerdictLog != "" {
		if werr := pipeline.WriteVerdictLog(cfg.Pipeline.VerdictLog, report); werr != nil {
			logger.WithError(werr).Error("Writing verdict log failed")
		}
	}
	if c.verdicts != nil {
		run := repository.Run{
			RunID:      report.RunID,
			StartedAt:  report.StartedAt,
			FinishedAt: report.FinishedAt,
			Accepted:   len(report.Accepted()),
			Rejected:   len(report.Rejected()),
			Errored:    len(report.Errored()),
		}
		if serr := c.verdicts.SaveRun(context.WithoutCancel(ctx), run); serr != nil {
			logger.WithError(serr).Error("Saving batch run failed")
		}
	}
	return report, err
}

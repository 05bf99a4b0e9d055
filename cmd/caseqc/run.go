package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/genomic-case-qc/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [case-id...]",
	Short: "Run the quality gate over cases",
	Long: `Run loads the given cases, or every case in the input source when none
are given, resolves their variants and evaluates the quality gate. The
verdict log is rotated and rewritten at the end of the run.`,
	RunE: runQuality,
}

var runFlags = flagKeys{
	"input":          "input.case_dir",
	"schema":         "input.schema",
	"workers":        "pipeline.workers",
	"verdict-log":    "pipeline.verdict_log",
	"export-dir":     "pipeline.export_dir",
	"project-vcf":    "pipeline.project_vcf",
	"convert-failed": "quality.convert_failed",
	"exclude-benign": "quality.exclude_benign",
}

var runJSON bool

func init() {
	f := runCmd.Flags()
	f.String("input", "", "case directory")
	f.String("schema", "", "input schema (bulk or lab)")
	f.Int("workers", 0, "cases processed concurrently")
	f.String("verdict-log", "", "verdict log path")
	f.String("export-dir", "", "write legacy case exports to this directory")
	f.Bool("project-vcf", false, "project accepted cases to VCF")
	f.Bool("convert-failed", false, "clear genomic entries of cases with a chromosomal abnormality")
	f.Bool("exclude-benign", false, "ignore benign entries in the molecular data check")
	f.BoolVar(&runJSON, "json", false, "print the batch report as JSON")
}

func runQuality(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd, runFlags)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := runBatch(ctx, cfg, c, logger, args)
	if report != nil {
		if perr := printReport(cmd.OutOrStdout(), report, runJSON); perr != nil {
			return perr
		}
	}
	return err
}

func printReport(w io.Writer, report *pipeline.BatchReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "run %s\n", report.RunID)
	fmt.Fprintf(w, "accepted: %d\n", len(report.Accepted()))
	fmt.Fprintf(w, "rejected: %d\n", len(report.Rejected()))
	for _, id := range report.Rejected() {
		fmt.Fprintf(w, "  %s: %v\n", id, report.Outcomes[id].Verdict.Issues)
	}
	fmt.Fprintf(w, "errors: %d\n", len(report.Errored()))
	for _, id := range report.Errored() {
		o := report.Outcomes[id]
		fmt.Fprintf(w, "  %s: [%s] %s\n", id, o.ErrorCode, o.Error)
	}
	return nil
}

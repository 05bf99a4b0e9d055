package main

import (
	"github.com/spf13/cobra"

	"github.com/genomic-case-qc/internal/pipeline"
)

var diffCmd = &cobra.Command{
	Use:   "diff [verdict-log]",
	Short: "Compare the verdict log with the previous run",
	Long: `Diff prints, per verdict section, the case ids only present in the
previous log (<log>.old) and those only present in the current one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, _, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			path = cfg.Pipeline.VerdictLog
		}
		diff, err := pipeline.DiffVerdictLogs(path)
		if err != nil {
			return err
		}
		return pipeline.WriteDiff(cmd.OutOrStdout(), diff)
	},
}

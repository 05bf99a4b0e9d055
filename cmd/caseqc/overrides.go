package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/genomic-case-qc/internal/domain"
	"github.com/genomic-case-qc/internal/overrides"
	"github.com/genomic-case-qc/pkg/hgvs"
)

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Inspect and curate the HGVS override store",
}

var overridesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List override entries",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, store *overrides.Store, args []string) error {
		pending, _ := cmd.Flags().GetBool("pending")
		return listOverrides(cmd.OutOrStdout(), store, pending)
	}),
}

var overridesShowCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show one override entry",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *overrides.Store, args []string) error {
		e, ok := store.GetEntry(args[0])
		if !ok {
			return fmt.Errorf("override entry %s: %w", args[0], domain.ErrNotFound)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	}),
}

var overridesSetCleanedCmd = &cobra.Command{
	Use:   "set-cleaned <entry-id> <description>...",
	Short: "Store curated HGVS descriptions for an entry",
	Args:  cobra.MinimumNArgs(2),
	RunE: withStore(func(cmd *cobra.Command, store *overrides.Store, args []string) error {
		return setCleaned(cmd, store, args[0], args[1:])
	}),
}

var overridesSetGeneCmd = &cobra.Command{
	Use:   "set-gene <entry-id>",
	Short: "Store the corrected gene for an entry",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *overrides.Store, args []string) error {
		symbol, _ := cmd.Flags().GetString("symbol")
		geneID, _ := cmd.Flags().GetString("gene-id")
		omimID, _ := cmd.Flags().GetString("omim-id")
		return setGene(cmd, store, args[0], domain.Gene{GeneID: geneID, GeneSymbol: symbol, GeneOMIMID: omimID})
	}),
}

var overridesExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the store in the interchange format",
	Args:  cobra.MaximumNArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *overrides.Store, args []string) error {
		if len(args) == 0 {
			return store.ExportJSON(cmd.Context(), cmd.OutOrStdout())
		}
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		if err := store.ExportJSON(cmd.Context(), f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}),
}

var overridesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import entries from an interchange document",
	Long:  "Import adds entries whose id is not in the store yet. Existing entries are kept.",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *overrides.Store, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		imported, skipped, err := store.ImportJSON(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d, version %d\n", imported, skipped, store.Version())
		return nil
	}),
}

func init() {
	overridesListCmd.Flags().Bool("pending", false, "only entries with failed candidates and no curated descriptions")
	overridesSetGeneCmd.Flags().String("symbol", "", "gene symbol")
	overridesSetGeneCmd.Flags().String("gene-id", "", "gene id")
	overridesSetGeneCmd.Flags().String("omim-id", "", "gene OMIM id")

	overridesCmd.PersistentFlags().String("store", "", "override store path")
	overridesCmd.PersistentFlags().String("driver", "", "override store driver (json or sqlite)")

	overridesCmd.AddCommand(
		overridesListCmd,
		overridesShowCmd,
		overridesSetCleanedCmd,
		overridesSetGeneCmd,
		overridesExportCmd,
		overridesImportCmd,
	)
}

var storeFlags = flagKeys{
	"store":  "overrides.path",
	"driver": "overrides.driver",
}

// withStore opens the configured override store around fn.
func withStore(fn func(cmd *cobra.Command, store *overrides.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, storeFlags)
		if err != nil {
			return err
		}
		store, err := openStore(cfg.Overrides, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("Closing override store failed")
			}
		}()
		logger.WithFields(logrus.Fields{
			"store":   store.Location(),
			"version": store.Version(),
		}).Debug("Override store opened")
		return fn(cmd, store, args)
	}
}

func listOverrides(w io.Writer, store *overrides.Store, pending bool) error {
	keys := store.Keys()
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFAILED\tSUCCEEDED\tCLEANED\tGENE")
	for _, k := range keys {
		e, ok := store.GetEntry(k)
		if !ok {
			continue
		}
		if pending && (len(e.Wrong) == 0 || e.HasCleaned()) {
			continue
		}
		gene := "-"
		if e.CorrectGene != nil && e.CorrectGene.GeneSymbol != "" {
			gene = e.CorrectGene.GeneSymbol
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%t\t%s\n", k, len(e.Wrong), len(e.Correct), e.HasCleaned(), gene)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "version %d\n", store.Version())
	return nil
}

// setCleaned stores curated descriptions once every one of them parses, then
// bumps the store version.
func setCleaned(cmd *cobra.Command, store *overrides.Store, id string, cleaned []string) error {
	parser := hgvs.NewParser()
	var errs []error
	for _, candidate := range cleaned {
		if res := parser.Parse(candidate); !res.OK() {
			errs = append(errs, res.Failure)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if err := store.SetCleaned(cmd.Context(), id, cleaned); err != nil {
		return err
	}
	return bumped(cmd, store, id)
}

func setGene(cmd *cobra.Command, store *overrides.Store, id string, gene domain.Gene) error {
	if gene.Empty() {
		return errors.New("one of --symbol, --gene-id or --omim-id is required")
	}
	if err := hgvs.NewValidator().ValidateGeneSymbol(gene.GeneSymbol); err != nil {
		return err
	}
	if err := store.SetCorrectGene(cmd.Context(), id, gene); err != nil {
		return err
	}
	return bumped(cmd, store, id)
}

func bumped(cmd *cobra.Command, store *overrides.Store, id string) error {
	version, err := store.BumpVersion(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s updated, store version %d\n", id, version)
	return nil
}

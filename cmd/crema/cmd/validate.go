package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/crema/pkg/confidence"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate input files and report their score columns",
	Long: `Validate that the input files parse into a dataset with both targets and
decoys, and report how many PSMs each score column accepts at --eval-fdr
in both directions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	addInputFlags(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fdr := confidence.DefaultOptions().EvalFDR
	if cfg.EvalFDR != nil {
		fdr = *cfg.EvalFDR
	}

	ds, pairing, err := readInput(cfg, args)
	if err != nil {
		return err
	}

	schema := ds.Schema()
	targets, decoys := ds.Counts()

	out := cmd.OutOrStdout()
	colorBold.Fprintf(out, "Input: %d file(s), format %s\n", len(args), detectFormat(cfg, args))
	fmt.Fprintf(out, "PSMs: %d (%d targets, %d decoys)\n", ds.Len(), targets, decoys)
	unique := make(map[string]struct{})
	for _, pep := range ds.Peptides() {
		unique[pep] = struct{}{}
	}
	fmt.Fprintf(out, "Unique peptides: %d\n", len(unique))
	if pairing != nil {
		fmt.Fprintf(out, "Paired peptides: %d\n", pairing.Len())
	} else {
		fmt.Fprintln(out, "Paired peptides: none")
	}
	if schema.HasProteins() {
		fmt.Fprintf(out, "Protein column: %s\n", schema.ProteinColumn)
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SCORE\tHIGHER BETTER\tLOWER BETTER\n")
	for _, col := range schema.ScoreColumns {
		desc, err := ds.CountPassing(col, true, fdr)
		if err != nil {
			return err
		}
		asc, err := ds.CountPassing(col, false, fdr)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\n", col, desc, asc)
	}
	tw.Flush()

	best, passing, desc, err := ds.FindBestScore(fdr)
	if err != nil {
		return err
	}
	direction := "lower is better"
	if desc {
		direction = "higher is better"
	}
	fmt.Fprintln(out)
	colorGreen.Fprintf(out, "Best score: %s (%s), %d PSMs at q<=%g\n", best, direction, passing, fdr)
	return nil
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChrisMcGann/crema/pkg/config"
	"github.com/ChrisMcGann/crema/pkg/confidence"
	"github.com/ChrisMcGann/crema/pkg/writer/sqlite"
	"github.com/ChrisMcGann/crema/pkg/writer/tsv"
)

var (
	// Flags for assign command
	scoreColumn string
	descending  string
	pepFDRType  string
	protFDRType string
	threshold   string
	method      string
	seed        int64
	outputDir   string
	fileRoot    string
	saveDecoys  bool
	compress    bool
	sqliteFile  string
)

var assignCmd = &cobra.Command{
	Use:   "assign [files...]",
	Short: "Assign confidence estimates to PSMs",
	Long: `Estimate q-values for the PSMs in one or more search result files and write
one table per level (psms, peptides, proteins, protein_groups).

Examples:
  # Crux tide-search output, selecting the best score automatically
  crema assign tide-search.target.txt tide-search.decoy.txt

  # Generic tab-delimited input with an explicit score
  crema assign psms.txt --target label --spectrum file,scan --scores xcorr,evalue \
      --peptide sequence --score xcorr --desc true --pairing pairs.txt

  # Mix-max on an MS-GF+ separate search, also saving to SQLite
  crema assign target.mzid decoy.mzid --score MS-GF:SpecEValue --desc false \
      --method mixmax --sqlite crema.db`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAssign,
}

func init() {
	addInputFlags(assignCmd)

	assignCmd.Flags().StringVarP(&scoreColumn, "score", "s", "", "Score column (default: the column passing the most PSMs at --eval-fdr)")
	assignCmd.Flags().StringVar(&descending, "desc", "auto", "Whether higher scores are better: true, false, or auto")
	assignCmd.Flags().StringVar(&pepFDRType, "pep-fdr-type", string(confidence.PSMPeptide), "Peptide-level competition: psm-only, peptide-only, psm-peptide")
	assignCmd.Flags().StringVar(&protFDRType, "prot-fdr-type", string(confidence.Best), "Protein score aggregation: best, combine")
	assignCmd.Flags().StringVar(&threshold, "threshold", "0.01", "FDR for the accept column, or 'q-value' to report q-values only")
	assignCmd.Flags().StringVar(&method, "method", string(confidence.TDC), "Estimation method: tdc, mixmax")
	assignCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for tie breaking (negative for a random seed)")
	assignCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Output directory (default: working directory)")
	assignCmd.Flags().StringVar(&fileRoot, "file-root", "", "Prefix of the output file names")
	assignCmd.Flags().BoolVar(&saveDecoys, "decoys", false, "Also write decoy tables")
	assignCmd.Flags().BoolVar(&compress, "gzip", false, "Compress the output tables")
	assignCmd.Flags().StringVar(&sqliteFile, "sqlite", "", "Also store the estimates in this SQLite database")
}

// applyEstimationFlags copies the estimation and output flags set on the
// command line into cfg.
func applyEstimationFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	set := func(name string, dst *string, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	set("score", &cfg.Score, scoreColumn)
	set("pep-fdr-type", &cfg.PepFDRType, pepFDRType)
	set("prot-fdr-type", &cfg.ProtFDRType, protFDRType)
	set("threshold", &cfg.Threshold, threshold)
	set("method", &cfg.Method, method)
	set("output-dir", &cfg.OutputDir, outputDir)
	set("file-root", &cfg.FileRoot, fileRoot)
	set("sqlite", &cfg.SQLite, sqliteFile)

	if flags.Changed("desc") {
		switch descending {
		case "true":
			cfg.Desc = confidence.Bool(true)
		case "false":
			cfg.Desc = confidence.Bool(false)
		case "auto":
			cfg.Desc = nil
		default:
			return fmt.Errorf("invalid --desc value '%s', must be true, false, or auto", descending)
		}
	}
	if flags.Changed("seed") {
		v := seed
		cfg.Seed = &v
	}
	if flags.Changed("decoys") {
		cfg.Decoys = saveDecoys
	}
	return nil
}

func runAssign(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Logger = logger

	ds, pairing, err := readInput(cfg, args)
	if err != nil {
		return err
	}

	conf, err := confidence.Assign(ds, pairing, opts)
	if err != nil {
		return err
	}

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	logger.Info("Writing results...")
	paths, err := tsv.Write([]*confidence.Confidence{conf}, tsv.Config{
		OutputDir: cfg.OutputDir,
		FileRoot:  cfg.FileRoot,
		Sep:       cfg.Separator(),
		Decoys:    cfg.Decoys,
		Compress:  compress,
	})
	if err != nil {
		return err
	}
	for _, path := range paths {
		logger.Debug("Wrote table", zap.String("path", path))
	}

	optionsPath, err := writeOptions(cfg)
	if err != nil {
		return err
	}
	paths = append(paths, optionsPath)

	if cfg.SQLite != "" {
		runID, err := writeSQLite(cfg.SQLite, conf, args)
		if err != nil {
			return err
		}
		logger.Info("Saved run to database", zap.String("path", cfg.SQLite), zap.String("run_id", runID))
	}

	printAssignment(cmd, conf, opts.EvalFDR, paths)
	return nil
}

// writeOptions saves the effective options next to the result tables as
// <root>.crema.options.yaml, so that a run can be repeated with --config.
func writeOptions(cfg *config.Config) (string, error) {
	name := "crema.options.yaml"
	if cfg.FileRoot != "" {
		name = cfg.FileRoot + "." + name
	}
	path := filepath.Join(cfg.OutputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create options file: %w", err)
	}
	if err := config.Write(f, cfg); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

func writeSQLite(path string, conf *confidence.Confidence, inputs []string) (string, error) {
	writer, err := sqlite.NewWriter(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	runID, err := writer.WriteRun(conf, inputs)
	if err != nil {
		return "", err
	}
	return runID, writer.Finalize()
}

// printAssignment reports the number of targets found at evalFDR per level.
func printAssignment(cmd *cobra.Command, conf *confidence.Confidence, evalFDR float64, paths []string) {
	out := cmd.OutOrStdout()

	direction := "lower is better"
	if conf.Desc {
		direction = "higher is better"
	}
	colorBold.Fprintf(out, "Confidence estimates (%s)\n", conf.Method)
	fmt.Fprintf(out, "Score: %s (%s)\n", conf.ScoreColumn, direction)
	if conf.Method == confidence.MixMax {
		fmt.Fprintf(out, "Pi0: %.4f\n", conf.Pi0)
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "LEVEL\tTARGETS\tDECOYS\tq<=%g\n", evalFDR)
	for _, level := range conf.Levels {
		targets := conf.Table(level)
		decoys := 0
		if d := conf.DecoyTable(level); d != nil {
			decoys = len(d.Rows)
		}
		passing := targets.CountAccepted(evalFDR)
		count := fmt.Sprint(passing)
		if passing == 0 {
			count = colorRed.Sprint(count)
		} else {
			count = colorGreen.Sprint(count)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", level, len(targets.Rows), decoys, count)
	}
	tw.Flush()

	fmt.Fprintln(out)
	for _, path := range paths {
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChrisMcGann/crema/pkg/config"
	"github.com/ChrisMcGann/crema/pkg/core"
	"github.com/ChrisMcGann/crema/pkg/reader/crux"
	"github.com/ChrisMcGann/crema/pkg/reader/mzid"
	"github.com/ChrisMcGann/crema/pkg/reader/txt"
)

// customModsFile is loaded from the working directory when --mods is unset.
const customModsFile = "unimod_custom.csv"

var (
	// Flags shared by commands that read PSMs
	inputFormat   string
	targetColumn  string
	spectrumCols  string
	scoreCols     string
	peptideColumn string
	proteinColumn string
	proteinDelim  string
	separator     string
	pairingFile   string
	modsFile      string
	evalFDR       float64
)

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inputFormat, "format", "f", "", "Input format: txt, crux, mzid (auto-detect if not specified)")
	cmd.Flags().StringVar(&targetColumn, "target", "", "Column labeling targets and decoys (txt)")
	cmd.Flags().StringVar(&spectrumCols, "spectrum", "", "Comma-separated columns identifying a spectrum (txt)")
	cmd.Flags().StringVar(&scoreCols, "scores", "", "Comma-separated score columns (txt)")
	cmd.Flags().StringVar(&peptideColumn, "peptide", "", "Peptide sequence column (txt)")
	cmd.Flags().StringVar(&proteinColumn, "protein", "", "Protein column (txt)")
	cmd.Flags().StringVar(&proteinDelim, "protein-delim", "", "Delimiter between proteins in the protein column (txt)")
	cmd.Flags().StringVar(&separator, "sep", "", "Field delimiter of txt input and output tables (default tab)")
	cmd.Flags().StringVar(&pairingFile, "pairing", "", "Target/decoy peptide pairing file (txt)")
	cmd.Flags().StringVar(&modsFile, "mods", "", "Modification CSV (mod,massshift,aa) for computing crux peptide masses")
	cmd.Flags().Float64Var(&evalFDR, "eval-fdr", 0.01, "FDR threshold used to select the score column")
}

// loadConfig reads the options file and applies the flags that were set on
// the command line on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := &config.Config{}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	set := func(name string, dst *string, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	set("format", &cfg.Format, strings.ToLower(inputFormat))
	set("target", &cfg.TargetColumn, targetColumn)
	set("peptide", &cfg.PeptideColumn, peptideColumn)
	set("protein", &cfg.ProteinColumn, proteinColumn)
	set("protein-delim", &cfg.ProteinDelim, proteinDelim)
	set("sep", &cfg.Sep, separator)
	set("pairing", &cfg.Pairing, pairingFile)
	if flags.Changed("spectrum") {
		cfg.SpectrumColumns = splitList(spectrumCols)
	}
	if flags.Changed("scores") {
		cfg.ScoreColumns = splitList(scoreCols)
	}
	if flags.Changed("eval-fdr") {
		v := evalFDR
		cfg.EvalFDR = &v
	}

	if err := applyEstimationFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// detectFormat picks the reader for paths. mzIdentML is recognized by its
// extension; otherwise a target column means generic txt input.
func detectFormat(cfg *config.Config, paths []string) string {
	if cfg.Format != "" {
		return cfg.Format
	}

	allMzid := true
	for _, path := range paths {
		name := strings.TrimSuffix(strings.ToLower(path), ".gz")
		if filepath.Ext(name) != ".mzid" {
			allMzid = false
			break
		}
	}
	switch {
	case allMzid:
		return config.FormatMzid
	case cfg.TargetColumn != "":
		return config.FormatTxt
	default:
		return config.FormatCrux
	}
}

// readInput parses the PSM files into a dataset and, when the format
// provides one, a target/decoy peptide pairing.
func readInput(cfg *config.Config, paths []string) (*core.Dataset, *core.PeptidePairing, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("input file does not exist: %s", path)
		}
	}

	format := detectFormat(cfg, paths)
	logger.Info("Reading PSMs", zap.String("format", format), zap.Int("files", len(paths)))

	switch format {
	case config.FormatCrux:
		modDB, err := loadModDatabase()
		if err != nil {
			return nil, nil, err
		}
		return crux.ReadDataset(paths, modDB, logger)

	case config.FormatMzid:
		ds, err := mzid.ReadDataset(paths, logger)
		return ds, nil, err

	case config.FormatTxt:
		schema := core.Schema{
			TargetColumn:    cfg.TargetColumn,
			SpectrumColumns: cfg.SpectrumColumns,
			ScoreColumns:    cfg.ScoreColumns,
			PeptideColumn:   cfg.PeptideColumn,
			ProteinColumn:   cfg.ProteinColumn,
			ProteinDelim:    cfg.ProteinDelim,
		}
		if err := schema.Validate(); err != nil {
			return nil, nil, fmt.Errorf("txt input: %w", err)
		}

		ds, err := txt.ReadDataset(paths, schema, cfg.Separator(), logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Pairing == "" {
			return ds, nil, nil
		}
		pairing, err := txt.ReadPairing(cfg.Pairing, cfg.Separator())
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("Loaded peptide pairing", zap.Int("pairs", pairing.Len()))
		return ds, pairing, nil
	}
	return nil, nil, fmt.Errorf("unsupported format: %s", format)
}

// loadModDatabase returns the default modifications extended with the
// --mods file or, without one, unimod_custom.csv if it exists.
func loadModDatabase() (*core.ModDatabase, error) {
	modDB := core.DefaultModDatabase()

	path := modsFile
	if path == "" {
		if _, err := os.Stat(customModsFile); err != nil {
			return modDB, nil
		}
		path = customModsFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open modification file: %w", err)
	}
	defer f.Close()

	if err := modDB.LoadFromCSV(f); err != nil {
		if modsFile == "" {
			logger.Warn("Failed to load "+customModsFile, zap.Error(err))
			return core.DefaultModDatabase(), nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	logger.Debug("Loaded custom modifications", zap.String("file", path))
	return modDB, nil
}

// Package config handles crema options files.
package config

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/crema/pkg/confidence"
)

// Input formats.
const (
	FormatTxt  = "txt"
	FormatCrux = "crux"
	FormatMzid = "mzid"
)

// Config represents the contents of a crema options file. Unset fields keep
// their defaults.
type Config struct {
	// Input
	Format          string   `yaml:"format,omitempty" toml:"format,omitempty"`
	TargetColumn    string   `yaml:"target_column,omitempty" toml:"target_column,omitempty"`
	SpectrumColumns []string `yaml:"spectrum_columns,omitempty" toml:"spectrum_columns,omitempty"`
	ScoreColumns    []string `yaml:"score_columns,omitempty" toml:"score_columns,omitempty"`
	PeptideColumn   string   `yaml:"peptide_column,omitempty" toml:"peptide_column,omitempty"`
	ProteinColumn   string   `yaml:"protein_column,omitempty" toml:"protein_column,omitempty"`
	ProteinDelim    string   `yaml:"protein_delim,omitempty" toml:"protein_delim,omitempty"`
	Sep             string   `yaml:"sep,omitempty" toml:"sep,omitempty"`
	Pairing         string   `yaml:"pairing,omitempty" toml:"pairing,omitempty"`

	// Confidence estimation
	Score       string   `yaml:"score,omitempty" toml:"score,omitempty"`
	Desc        *bool    `yaml:"desc,omitempty" toml:"desc,omitempty"`
	EvalFDR     *float64 `yaml:"eval_fdr,omitempty" toml:"eval_fdr,omitempty"`
	PepFDRType  string   `yaml:"pep_fdr_type,omitempty" toml:"pep_fdr_type,omitempty"`
	ProtFDRType string   `yaml:"prot_fdr_type,omitempty" toml:"prot_fdr_type,omitempty"`
	Threshold   string   `yaml:"threshold,omitempty" toml:"threshold,omitempty"`
	Method      string   `yaml:"method,omitempty" toml:"method,omitempty"`
	Seed        *int64   `yaml:"seed,omitempty" toml:"seed,omitempty"`

	// Output
	OutputDir string `yaml:"output_dir,omitempty" toml:"output_dir,omitempty"`
	FileRoot  string `yaml:"file_root,omitempty" toml:"file_root,omitempty"`
	Decoys    bool   `yaml:"decoys,omitempty" toml:"decoys,omitempty"`
	SQLite    string `yaml:"sqlite,omitempty" toml:"sqlite,omitempty"`
}

var ErrInvalidConfig = errors.New("config validation failed")

// Load reads an options file. Files ending in .toml are parsed as TOML,
// everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Write marshals the config to YAML and writes it to w.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	enc.SetIndent(2)
	return enc.Encode(cfg)
}

// Validate checks all fields and returns all errors at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.Format {
	case "", FormatTxt, FormatCrux, FormatMzid:
	default:
		errs = append(errs, fmt.Sprintf("format: invalid value %q (must be txt, crux, or mzid)", c.Format))
	}
	if c.Sep != "" && utf8.RuneCountInString(c.Sep) != 1 {
		errs = append(errs, fmt.Sprintf("sep: must be a single character, got %q", c.Sep))
	}
	if c.ProteinColumn != "" && c.ProteinDelim == "" {
		errs = append(errs, "protein_delim: required with protein_column")
	}
	if c.EvalFDR != nil && (*c.EvalFDR < 0 || *c.EvalFDR > 1) {
		errs = append(errs, fmt.Sprintf("eval_fdr: must be between 0.0 and 1.0, got %g", *c.EvalFDR))
	}
	if c.PepFDRType != "" {
		if _, err := confidence.ParsePepFDRType(c.PepFDRType); err != nil {
			errs = append(errs, fmt.Sprintf("pep_fdr_type: %v", err))
		}
	}
	if c.ProtFDRType != "" {
		if _, err := confidence.ParseProtFDRType(c.ProtFDRType); err != nil {
			errs = append(errs, fmt.Sprintf("prot_fdr_type: %v", err))
		}
	}
	if c.Threshold != "" {
		if _, err := confidence.ParseThreshold(c.Threshold); err != nil {
			errs = append(errs, fmt.Sprintf("threshold: %v", err))
		}
	}
	if c.Method != "" {
		if _, err := confidence.ParseMethod(c.Method); err != nil {
			errs = append(errs, fmt.Sprintf("method: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  %s", ErrInvalidConfig, strings.Join(errs, "\n  "))
	}
	return nil
}

// Separator returns the field delimiter, tab when unset.
func (c *Config) Separator() rune {
	if c.Sep == "" {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(c.Sep)
	return r
}

// Options converts the estimation settings into confidence options,
// starting from confidence.DefaultOptions. A negative seed draws the
// generator seed from the runtime entropy source.
func (c *Config) Options() (confidence.Options, error) {
	if err := c.Validate(); err != nil {
		return confidence.Options{}, err
	}

	opts := confidence.DefaultOptions()
	opts.ScoreColumn = c.Score
	if c.Desc != nil {
		opts.Desc = confidence.Bool(*c.Desc)
	}
	if c.EvalFDR != nil {
		opts.EvalFDR = *c.EvalFDR
	}
	if c.PepFDRType != "" {
		opts.PepFDRType, _ = confidence.ParsePepFDRType(c.PepFDRType)
	}
	if c.ProtFDRType != "" {
		opts.ProtFDRType, _ = confidence.ParseProtFDRType(c.ProtFDRType)
	}
	if c.Threshold != "" {
		opts.Threshold, _ = confidence.ParseThreshold(c.Threshold)
	}
	if c.Method != "" {
		opts.Method, _ = confidence.ParseMethod(c.Method)
	}
	if c.Seed != nil {
		if *c.Seed < 0 {
			opts.Rand = confidence.NewRand(rand.Uint64())
		} else {
			opts.Rand = confidence.NewRand(uint64(*c.Seed))
		}
	}
	return opts, nil
}

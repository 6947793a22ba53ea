// Package core provides the intermediate representation (IR) models and validation logic
// for peptide-spectrum matches and confidence tables used by crema.
package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrNoPSMs        = errors.New("no PSMs were provided")
	ErrNoTargets     = errors.New("no target PSMs were detected")
	ErrNoDecoys      = errors.New("no decoy PSMs were detected")
	ErrUnknownColumn = errors.New("unknown column")
	ErrInvalidTarget = errors.New("invalid target/decoy label")
)

// PSM represents a single peptide-spectrum match.
type PSM struct {
	Spectrum []string  // Values of the spectrum columns, compared for equality only
	Scores   []float64 // Aligned with Schema.ScoreColumns
	Target   bool      // true = target, false = decoy
	Peptide  string    // Peptide sequence with inline modifications
	Proteins string    // One or more proteins joined by Schema.ProteinDelim
}

// Schema names the semantic columns of a PSM table.
type Schema struct {
	TargetColumn    string
	SpectrumColumns []string // Together identify a unique mass spectrum
	ScoreColumns    []string
	PeptideColumn   string
	ProteinColumn   string // Optional
	ProteinDelim    string // Required when ProteinColumn is set
}

// ValidationError represents an error found during PSM table validation.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks that the schema names every required column.
func (s Schema) Validate() error {
	var errs []string

	if s.TargetColumn == "" {
		errs = append(errs, "target column is required")
	}
	if len(s.SpectrumColumns) == 0 {
		errs = append(errs, "at least one spectrum column is required")
	}
	if len(s.ScoreColumns) == 0 {
		errs = append(errs, "at least one score column is required")
	}
	if s.PeptideColumn == "" {
		errs = append(errs, "peptide column is required")
	}
	if s.ProteinColumn != "" && s.ProteinDelim == "" {
		errs = append(errs, "protein delimiter is required with a protein column")
	}

	seen := make(map[string]bool)
	for _, col := range s.ScoreColumns {
		if seen[col] {
			errs = append(errs, fmt.Sprintf("duplicate score column %q", col))
		}
		seen[col] = true
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Schema",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// HasProteins reports whether the schema carries a protein column.
func (s Schema) HasProteins() bool {
	return s.ProteinColumn != ""
}

// ScoreIndex returns the position of a score column.
func (s Schema) ScoreIndex(column string) (int, error) {
	for i, col := range s.ScoreColumns {
		if col == column {
			return i, nil
		}
	}
	return -1, fmt.Errorf("score column %q: %w", column, ErrUnknownColumn)
}

// validate checks a single PSM against the schema.
func (p *PSM) validate(s Schema) []string {
	var errs []string

	if len(p.Spectrum) != len(s.SpectrumColumns) {
		errs = append(errs, fmt.Sprintf("expected %d spectrum values, got %d", len(s.SpectrumColumns), len(p.Spectrum)))
	}
	if len(p.Scores) != len(s.ScoreColumns) {
		errs = append(errs, fmt.Sprintf("expected %d scores, got %d", len(s.ScoreColumns), len(p.Scores)))
	}
	for i, score := range p.Scores {
		if math.IsNaN(score) {
			errs = append(errs, fmt.Sprintf("score %d is NaN", i))
		}
	}
	if p.Peptide == "" {
		errs = append(errs, "peptide is required")
	}

	return errs
}

// SpectrumKey joins the spectrum values into a single grouping key.
func (p *PSM) SpectrumKey() string {
	return joinKey(p.Spectrum)
}

func joinKey(values []string) string {
	return strings.Join(values, "\x1f")
}

// ParseTarget converts a target/decoy label to a boolean.
// Textual labels are case-insensitive; other numbers are targets when positive.
func ParseTarget(label string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "target", "t", "true", "1":
		return true, nil
	case "decoy", "d", "f", "false", "0", "-1":
		return false, nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(label), 64)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidTarget, label)
	}
	return v > 0, nil
}

package confidence

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrInvalidEvalFDR     = errors.New("eval_fdr should be between 0 and 1")
	ErrInvalidPepFDRType  = errors.New("pep_fdr_type should be 'psm-only', 'peptide-only', or 'psm-peptide'")
	ErrInvalidProtFDRType = errors.New("prot_fdr_type should be 'best' or 'combine'")
	ErrInvalidMethod      = errors.New("method should be 'tdc' or 'mixmax'")
	ErrInvalidThreshold   = errors.New("threshold should be 'q-value' or a number between 0 and 1")
	ErrPairingRequired    = errors.New("must provide paired target decoy peptide information")
	ErrDescRequired       = errors.New("'desc' has to be set for mix-max")
	ErrNoSeparateSearch   = errors.New("mix-max requires a separate target and decoy search")
)

// PepFDRType selects how peptide-level competition is performed.
type PepFDRType string

const (
	// PSMOnly competes peptides by their raw sequence.
	PSMOnly PepFDRType = "psm-only"
	// PeptideOnly competes each target peptide with its paired decoy.
	PeptideOnly PepFDRType = "peptide-only"
	// PSMPeptide performs PSM-level competition first, then peptide-only.
	PSMPeptide PepFDRType = "psm-peptide"
)

// ParsePepFDRType validates a peptide FDR type name.
func ParsePepFDRType(s string) (PepFDRType, error) {
	switch t := PepFDRType(s); t {
	case PSMOnly, PeptideOnly, PSMPeptide:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPepFDRType, s)
}

// ProtFDRType selects how PSM scores are aggregated into protein scores.
type ProtFDRType string

const (
	// Best keeps the best PSM score of each protein.
	Best ProtFDRType = "best"
	// Combine sums (higher is better) or multiplies (lower is better) the scores.
	Combine ProtFDRType = "combine"
)

// ParseProtFDRType validates a protein FDR type name.
func ParseProtFDRType(s string) (ProtFDRType, error) {
	switch t := ProtFDRType(s); t {
	case Best, Combine:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProtFDRType, s)
}

// Method is the confidence estimation procedure.
type Method string

const (
	TDC    Method = "tdc"
	MixMax Method = "mixmax"
)

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case TDC, MixMax:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
}

// QValueSentinel is the threshold value that reports q-values without an
// accept column.
const QValueSentinel = "q-value"

// Threshold decides which discoveries are accepted.
type Threshold struct {
	QValue bool    // Report q-values only
	FDR    float64 // Accept rows with q-value <= FDR when QValue is false
}

// FDRThreshold accepts rows at or below fdr.
func FDRThreshold(fdr float64) Threshold {
	return Threshold{FDR: fdr}
}

// ParseThreshold parses "q-value" or a number between 0 and 1.
func ParseThreshold(s string) (Threshold, error) {
	if strings.TrimSpace(s) == QValueSentinel {
		return Threshold{QValue: true}, nil
	}
	fdr, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || fdr < 0 || fdr > 1 {
		return Threshold{}, fmt.Errorf("%w: %q", ErrInvalidThreshold, s)
	}
	return FDRThreshold(fdr), nil
}

func (t Threshold) String() string {
	if t.QValue {
		return QValueSentinel
	}
	return strconv.FormatFloat(t.FDR, 'g', -1, 64)
}

// Level is a granularity at which confidence is estimated.
type Level string

const (
	PSMs          Level = "psms"
	Peptides      Level = "peptides"
	Proteins      Level = "proteins"
	ProteinGroups Level = "protein_groups"
)

// Label returns the display name of a level.
func (l Level) Label() string {
	switch l {
	case PSMs:
		return "PSMs"
	case Peptides:
		return "Peptides"
	case Proteins:
		return "Proteins"
	case ProteinGroups:
		return "ProteinGroups"
	}
	return string(l)
}

// Options configures Assign.
type Options struct {
	ScoreColumn string // Empty selects the column passing the most targets at EvalFDR
	Desc        *bool  // nil tries both directions
	EvalFDR     float64
	PepFDRType  PepFDRType
	ProtFDRType ProtFDRType
	Threshold   Threshold
	Method      Method
	Rand        *rand.Rand  // Breaks ties and drives the pi0 bootstrap; nil uses seed 0
	Logger      *zap.Logger // nil disables logging
}

// DefaultOptions returns the default option set with a fixed seed.
func DefaultOptions() Options {
	return Options{
		EvalFDR:     0.01,
		PepFDRType:  PSMPeptide,
		ProtFDRType: Best,
		Threshold:   FDRThreshold(0.01),
		Method:      TDC,
		Rand:        NewRand(0),
	}
}

// NewRand returns a generator seeded with seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Bool returns a pointer to b, for Options.Desc.
func Bool(b bool) *bool {
	return &b
}

func (o *Options) validate() error {
	if o.EvalFDR < 0 || o.EvalFDR > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidEvalFDR, o.EvalFDR)
	}
	if _, err := ParsePepFDRType(string(o.PepFDRType)); err != nil {
		return err
	}
	if _, err := ParseProtFDRType(string(o.ProtFDRType)); err != nil {
		return err
	}
	if _, err := ParseMethod(string(o.Method)); err != nil {
		return err
	}
	if !o.Threshold.QValue && (o.Threshold.FDR < 0 || o.Threshold.FDR > 1) {
		return fmt.Errorf("%w: %g", ErrInvalidThreshold, o.Threshold.FDR)
	}
	return nil
}

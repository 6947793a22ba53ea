package core

import (
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/crema/pkg/qvalues"
)

// Dataset is an immutable collection of PSMs and the columns that describe them.
type Dataset struct {
	schema Schema
	psms   []PSM
}

// NewDataset validates and copies psms into a new Dataset.
// At least one target and one decoy PSM are required.
func NewDataset(psms []PSM, schema Schema) (*Dataset, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if len(psms) == 0 {
		return nil, &ValidationError{Field: "PSMs", Message: ErrNoPSMs.Error(), Err: ErrNoPSMs}
	}

	var targets, decoys int
	for i := range psms {
		if errs := psms[i].validate(schema); len(errs) > 0 {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("PSM %d", i),
				Message: strings.Join(errs, "; "),
			}
		}
		if psms[i].Target {
			targets++
		} else {
			decoys++
		}
	}
	if targets == 0 {
		return nil, &ValidationError{Field: schema.TargetColumn, Message: ErrNoTargets.Error(), Err: ErrNoTargets}
	}
	if decoys == 0 {
		return nil, &ValidationError{Field: schema.TargetColumn, Message: ErrNoDecoys.Error(), Err: ErrNoDecoys}
	}

	return &Dataset{
		schema: cloneSchema(schema),
		psms:   clonePSMs(psms),
	}, nil
}

// Schema returns the column description of the dataset.
func (d *Dataset) Schema() Schema {
	return cloneSchema(d.schema)
}

// Len returns the number of PSMs.
func (d *Dataset) Len() int {
	return len(d.psms)
}

// PSMs returns a copy of the PSMs.
func (d *Dataset) PSMs() []PSM {
	return clonePSMs(d.psms)
}

// Targets returns the target/decoy labels.
func (d *Dataset) Targets() []bool {
	out := make([]bool, len(d.psms))
	for i := range d.psms {
		out[i] = d.psms[i].Target
	}
	return out
}

// Counts returns the number of target and decoy PSMs.
func (d *Dataset) Counts() (targets, decoys int) {
	for i := range d.psms {
		if d.psms[i].Target {
			targets++
		} else {
			decoys++
		}
	}
	return targets, decoys
}

// Scores returns the values of a score column.
func (d *Dataset) Scores(column string) ([]float64, error) {
	idx, err := d.schema.ScoreIndex(column)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(d.psms))
	for i := range d.psms {
		out[i] = d.psms[i].Scores[idx]
	}
	return out, nil
}

// Peptides returns the peptide sequences.
func (d *Dataset) Peptides() []string {
	out := make([]string, len(d.psms))
	for i := range d.psms {
		out[i] = d.psms[i].Peptide
	}
	return out
}

// CountPassing runs target-decoy competition q-values on a score column
// and returns the number of targets at or below evalFDR.
func (d *Dataset) CountPassing(column string, desc bool, evalFDR float64) (int, error) {
	scores, err := d.Scores(column)
	if err != nil {
		return 0, err
	}
	targets := d.Targets()

	qvals, err := qvalues.TDC(scores, targets, desc)
	if err != nil {
		return 0, fmt.Errorf("score column %q: %w", column, err)
	}

	n := 0
	for i, q := range qvals {
		if targets[i] && q <= evalFDR {
			n++
		}
	}
	return n, nil
}

// FindBestScore tries every score column in both directions and returns the
// one that yields the most targets at evalFDR. The first maximum wins.
func (d *Dataset) FindBestScore(evalFDR float64) (column string, passing int, desc bool, err error) {
	type trial struct {
		column string
		desc   bool
		n      int
	}

	trials := make([]trial, 0, 2*len(d.schema.ScoreColumns))
	for _, col := range d.schema.ScoreColumns {
		trials = append(trials, trial{column: col, desc: true}, trial{column: col, desc: false})
	}

	var g errgroup.Group
	for i := range trials {
		g.Go(func() error {
			n, err := d.CountPassing(trials[i].column, trials[i].desc, evalFDR)
			if err != nil {
				return err
			}
			trials[i].n = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", 0, false, err
	}

	best := trials[0]
	for _, t := range trials[1:] {
		if t.n > best.n {
			best = t
		}
	}
	return best.column, best.n, best.desc, nil
}

func cloneSchema(s Schema) Schema {
	s.SpectrumColumns = append([]string(nil), s.SpectrumColumns...)
	s.ScoreColumns = append([]string(nil), s.ScoreColumns...)
	return s
}

func clonePSMs(psms []PSM) []PSM {
	out := make([]PSM, len(psms))
	for i, p := range psms {
		p.Spectrum = append([]string(nil), p.Spectrum...)
		p.Scores = append([]float64(nil), p.Scores...)
		out[i] = p
	}
	return out
}

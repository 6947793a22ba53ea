// Package confidence assigns confidence estimates to a collection of
// peptide-spectrum matches at the PSM, peptide, protein and protein group
// levels.
package confidence

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/ChrisMcGann/crema/pkg/core"
)

// Confidence holds the estimates of a single dataset. Tables list the best
// score first.
type Confidence struct {
	Method      Method
	ScoreColumn string
	Desc        bool
	Pi0         float64 // Estimated by mix-max; 0 for tdc
	Threshold   Threshold
	Levels      []Level // Levels in the order they were estimated
	Targets     map[Level]*core.Table
	Decoys      map[Level]*core.Table // Empty for mix-max
}

// Table returns the target estimates of a level, or nil.
func (c *Confidence) Table(level Level) *core.Table {
	return c.Targets[level]
}

// DecoyTable returns the decoy estimates of a level, or nil.
func (c *Confidence) DecoyTable(level Level) *core.Table {
	return c.Decoys[level]
}

// assigner carries the state of one Assign call.
type assigner struct {
	schema  core.Schema
	pairing *core.PeptidePairing
	opts    Options
	column  string
	desc    bool
	rng     *rand.Rand
	log     *zap.Logger
	conf    *Confidence
}

// Assign estimates q-values for the PSMs in ds. pairing links target
// peptides with their decoys and is required unless opts.PepFDRType is
// PSMOnly or opts.Method is MixMax. ds is not modified.
func Assign(ds *core.Dataset, pairing *core.PeptidePairing, opts Options) (*Confidence, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rand == nil {
		opts.Rand = NewRand(0)
	}

	switch opts.Method {
	case TDC:
		opts.Logger.Info("Assigning confidence estimates using target-decoy competition...")
		if pairing == nil && opts.PepFDRType != PSMOnly {
			return nil, fmt.Errorf("%w for pep_fdr_type %q", ErrPairingRequired, opts.PepFDRType)
		}
	case MixMax:
		opts.Logger.Info("Assigning confidence estimates using mix-max competition...")
		// The wrong direction divides by zero instead of failing.
		if opts.Desc == nil {
			return nil, ErrDescRequired
		}
	}

	column, desc, err := selectScore(ds, opts)
	if err != nil {
		return nil, err
	}

	a := &assigner{
		schema:  ds.Schema(),
		pairing: pairing,
		opts:    opts,
		column:  column,
		desc:    desc,
		rng:     opts.Rand,
		log:     opts.Logger,
		conf: &Confidence{
			Method:      opts.Method,
			ScoreColumn: column,
			Desc:        desc,
			Threshold:   opts.Threshold,
			Targets:     make(map[Level]*core.Table),
			Decoys:      make(map[Level]*core.Table),
		},
	}

	rows, err := a.psmRows(ds)
	if err != nil {
		return nil, err
	}

	if opts.Method == MixMax {
		err = a.assignMixMax(rows)
	} else {
		err = a.assignTDC(rows)
	}
	if err != nil {
		return nil, err
	}
	return a.conf, nil
}

// selectScore resolves the score column and its direction. Without a score
// column, the column and direction passing the most targets at EvalFDR are
// used; an explicit Desc still wins for mix-max.
func selectScore(ds *core.Dataset, opts Options) (string, bool, error) {
	if opts.ScoreColumn == "" {
		column, passing, desc, err := ds.FindBestScore(opts.EvalFDR)
		if err != nil {
			return "", false, err
		}
		if opts.Method == MixMax {
			desc = *opts.Desc
		}
		opts.Logger.Info("Selected best score",
			zap.String("column", column),
			zap.Bool("desc", desc),
			zap.Int("passing", passing),
			zap.Float64("eval_fdr", opts.EvalFDR))
		return column, desc, nil
	}

	if _, err := ds.Schema().ScoreIndex(opts.ScoreColumn); err != nil {
		return "", false, err
	}
	if opts.Desc != nil {
		return opts.ScoreColumn, *opts.Desc, nil
	}

	tPass, err := ds.CountPassing(opts.ScoreColumn, true, opts.EvalFDR)
	if err != nil {
		return "", false, err
	}
	fPass, err := ds.CountPassing(opts.ScoreColumn, false, opts.EvalFDR)
	if err != nil {
		return "", false, err
	}
	return opts.ScoreColumn, tPass > fPass, nil
}

// psmRows converts the PSMs of ds into rows scored by the selected column.
func (a *assigner) psmRows(ds *core.Dataset) ([]core.Row, error) {
	idx, err := a.schema.ScoreIndex(a.column)
	if err != nil {
		return nil, err
	}
	psms := ds.PSMs()
	rows := make([]core.Row, len(psms))
	for i, p := range psms {
		rows[i] = core.Row{
			Spectrum: p.Spectrum,
			Peptide:  p.Peptide,
			Protein:  p.Proteins,
			Target:   p.Target,
			Score:    p.Scores[idx],
		}
	}
	return rows, nil
}

// layout returns the presentation of a level's tables.
func (a *assigner) layout(level Level) core.Layout {
	l := core.Layout{
		ScoreColumn: a.column,
		Accept:      !a.opts.Threshold.QValue,
	}
	switch level {
	case Proteins:
		l.ProteinColumn = a.schema.ProteinColumn
	case ProteinGroups:
		l.ProteinColumn = core.ProteinGroupColumn
	default:
		l.SpectrumColumns = a.schema.SpectrumColumns
		l.PeptideColumn = a.schema.PeptideColumn
		l.ProteinColumn = a.schema.ProteinColumn
	}
	return l
}

// record stores the estimates of a level. rows are best score first and
// qvals is aligned with them.
func (a *assigner) record(level Level, rows []core.Row, qvals []float64, withDecoys bool) {
	targets := make([]core.Row, 0, len(rows))
	var decoys []core.Row
	passing := 0
	for i := range rows {
		r := rows[i]
		r.QValue = qvals[i]
		r.Accept = !a.opts.Threshold.QValue && r.QValue <= a.opts.Threshold.FDR
		if !r.Target {
			decoys = append(decoys, r)
			continue
		}
		targets = append(targets, r)
		if r.QValue <= a.opts.EvalFDR {
			passing++
		}
	}

	layout := a.layout(level)
	a.conf.Levels = append(a.conf.Levels, level)
	a.conf.Targets[level] = &core.Table{Level: string(level), Layout: layout, Rows: targets}
	if withDecoys {
		a.conf.Decoys[level] = &core.Table{Level: string(level), Layout: layout, Rows: decoys}
	}

	a.log.Info("  - Found accepted "+level.Label()+".",
		zap.String("level", string(level)),
		zap.Int("passing", passing),
		zap.Float64("eval_fdr", a.opts.EvalFDR))
}

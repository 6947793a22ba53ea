package confidence

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ChrisMcGann/crema/pkg/core"
	"github.com/ChrisMcGann/crema/pkg/filter"
	"github.com/ChrisMcGann/crema/pkg/proteins"
	"github.com/ChrisMcGann/crema/pkg/qvalues"
)

// groupingFDR is the peptide-level q-value cutoff for protein grouping.
const groupingFDR = 0.01

// assignTDC estimates q-values at every level with target-decoy competition.
func (a *assigner) assignTDC(psms []core.Row) error {
	a.log.Warn("PSM-level FDR estimates are not guaranteed to control " +
		"the FDR. We suggest avoiding PSM-level FDR and using " +
		"peptide-level FDR estimates.")

	levels := []Level{PSMs, Peptides}
	if a.schema.HasProteins() {
		levels = append(levels, Proteins, ProteinGroups)
	}

	for _, level := range levels {
		rows, key, err := a.levelRows(level, psms)
		if err != nil {
			return fmt.Errorf("%s: %w", level.Label(), err)
		}

		rows = compete(rows, key, a.desc, a.rng)

		scores := make([]float64, len(rows))
		targets := make([]bool, len(rows))
		for i := range rows {
			scores[i] = rows[i].Score
			targets[i] = rows[i].Target
		}
		qvals, err := qvalues.TDC(scores, targets, a.desc)
		if err != nil {
			return fmt.Errorf("%s: %w", level.Label(), err)
		}

		a.record(level, rows, qvals, true)
	}
	return nil
}

// levelRows prepares the rows of a level and the key they compete on.
func (a *assigner) levelRows(level Level, psms []core.Row) ([]core.Row, keyFunc, error) {
	switch level {
	case PSMs:
		return psms, spectrumKey, nil

	case Peptides:
		switch a.opts.PepFDRType {
		case PSMOnly:
			return psms, peptideKey, nil
		case PeptideOnly:
			return psms, a.pairingKey, nil
		default:
			return compete(psms, spectrumKey, a.desc, a.rng), a.pairingKey, nil
		}

	case Proteins:
		rows := compete(psms, spectrumKey, a.desc, a.rng)
		unique := &filter.Config{ProteinDelim: a.schema.ProteinDelim}
		rows = unique.Apply(rows)
		return aggregate(rows, newAggregator(a.opts.ProtFDRType, a.desc)), proteinKey, nil

	case ProteinGroups:
		rows, err := a.proteinGroupRows()
		if err != nil {
			return nil, nil, err
		}
		return aggregate(rows, newAggregator(a.opts.ProtFDRType, a.desc)), proteinKey, nil
	}
	return nil, nil, fmt.Errorf("unknown level %q", level)
}

func (a *assigner) pairingKey(r *core.Row) string {
	return a.pairing.Key(r.Peptide)
}

// proteinGroupRows labels the peptides accepted at groupingFDR with their
// protein group.
func (a *assigner) proteinGroupRows() ([]core.Row, error) {
	confident := &filter.Config{QValueCutoff: groupingFDR}
	targets := confident.Apply(a.conf.Targets[Peptides].Rows)
	decoys := confident.Apply(a.conf.Decoys[Peptides].Rows)

	a.log.Info("Building protein groups...")
	grouping, err := proteins.Group(peptides(targets), peptides(decoys), a.schema.ProteinDelim)
	if err != nil {
		return nil, err
	}
	a.log.Debug("Protein groups built",
		zap.Int("groups", len(grouping.Groups)),
		zap.Int("shared_peptides", len(grouping.Shared())))

	rows := make([]core.Row, 0, len(targets)+len(decoys))
	for _, r := range append(targets, decoys...) {
		group, ok := grouping.Representative(r.Peptide)
		if !ok {
			continue
		}
		rows = append(rows, core.Row{
			Peptide: r.Peptide,
			Protein: group,
			Target:  r.Target,
			Score:   r.Score,
		})
	}
	return rows, nil
}

func peptides(rows []core.Row) []proteins.Peptide {
	out := make([]proteins.Peptide, len(rows))
	for i, r := range rows {
		out[i] = proteins.Peptide{Sequence: r.Peptide, Proteins: r.Protein}
	}
	return out
}

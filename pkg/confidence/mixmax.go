package confidence

import (
	"slices"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/ChrisMcGann/crema/pkg/core"
	"github.com/ChrisMcGann/crema/pkg/filter"
	"github.com/ChrisMcGann/crema/pkg/qvalues"
)

// assignMixMax estimates PSM-level q-values for targets with mix-max
// competition. It needs a separate target and decoy search with a
// calibrated score.
func (a *assigner) assignMixMax(psms []core.Row) error {
	targets := (&filter.Config{TargetsOnly: true}).Apply(psms)
	decoys := make([]core.Row, 0, len(psms)-len(targets))
	for _, r := range psms {
		if !r.Target {
			decoys = append(decoys, r)
		}
	}

	if len(targets) != len(decoys) {
		a.log.Warn("The mix-max procedure is not well behaved when # targets != # decoys.",
			zap.Int("targets", len(targets)),
			zap.Int("decoys", len(decoys)))
	}
	if !separateSearch(targets, decoys) {
		return ErrNoSeparateSearch
	}

	// Best hit per spectrum, best first.
	targets = compete(targets, spectrumKey, a.desc, a.rng)
	decoys = compete(decoys, spectrumKey, a.desc, a.rng)

	combined := slices.Concat(targets, decoys)
	a.rng.Shuffle(len(combined), func(i, j int) {
		combined[i], combined[j] = combined[j], combined[i]
	})
	sort.SliceStable(combined, func(i, j int) bool {
		if a.desc {
			return combined[i].Score > combined[j].Score
		}
		return combined[i].Score < combined[j].Score
	})

	// Normalize so that larger is better, then order targets and decoys
	// worst to best.
	targetScores := a.normalized(targets)
	decoyScores := a.normalized(decoys)
	slices.Reverse(targetScores)
	slices.Reverse(decoyScores)

	combinedScores := a.normalized(combined)
	combinedTarget := make([]bool, len(combined))
	for i := range combined {
		combinedTarget[i] = combined[i].Target
	}

	pi0, qvals, err := qvalues.MixMax(targetScores, decoyScores, combinedScores, combinedTarget, a.rng)
	if err != nil {
		return err
	}
	a.log.Info("  - Estimated pi_zero.", zap.Float64("pi0", pi0))
	if pi0 == 1 {
		a.log.Debug("FALLBACK: pi0==1.0; all q-values will be 1.0")
	}
	a.conf.Pi0 = pi0

	// Back to best first.
	slices.Reverse(qvals)
	a.record(PSMs, targets, qvals, false)
	return nil
}

// normalized returns the scores of rows negated when lower is better.
func (a *assigner) normalized(rows []core.Row) []float64 {
	scores := make([]float64, len(rows))
	for i := range rows {
		scores[i] = rows[i].Score
	}
	if !a.desc {
		floats.Scale(-1, scores)
	}
	return scores
}

// separateSearch reports whether at least one spectrum has both a target
// and a decoy match.
func separateSearch(targets, decoys []core.Row) bool {
	spectra := make(map[string]bool, len(targets))
	for i := range targets {
		spectra[targets[i].SpectrumKey()] = true
	}
	for i := range decoys {
		if spectra[decoys[i].SpectrumKey()] {
			return true
		}
	}
	return false
}

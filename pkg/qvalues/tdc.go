// Package qvalues estimates q-values from target and decoy scores, using
// either target-decoy competition or the mix-max procedure of Keich et al.
// (J. Proteome Res. 2015).
package qvalues

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrLengthMismatch    = errors.New("scores and target labels must be the same length")
	ErrPerfectSeparation = errors.New("too good separation between target and decoy PSMs")
	ErrInvalidPi0        = errors.New("invalid pi0 estimate")
)

// TDC estimates q-values using target-decoy competition. For the set of
// hits at or better than a score threshold the FDR is estimated as
// (decoys + 1) / targets, and each hit receives the minimum FDR at which it
// would be accepted. The returned q-values are in the order of scores.
func TDC(scores []float64, target []bool, desc bool) ([]float64, error) {
	if len(scores) != len(target) {
		return nil, fmt.Errorf("%w: %d scores, %d labels", ErrLengthMismatch, len(scores), len(target))
	}
	n := len(scores)
	if n == 0 {
		return []float64{}, nil
	}

	// Sort best to worst.
	sorted := make([]float64, n)
	if desc {
		floats.ScaleTo(sorted, -1, scores)
	} else {
		copy(sorted, scores)
	}
	order := make([]int, n)
	floats.Argsort(sorted, order)

	// Walk worst to best from here on.
	fdr := make([]float64, n)
	worst := make([]float64, n)
	var cumTargets, cumDecoys int
	for rank, idx := range order {
		if target[idx] {
			cumTargets++
		} else {
			cumDecoys++
		}
		f := 1.0
		if cumTargets != 0 {
			f = min(float64(cumDecoys+1)/float64(cumTargets), 1)
		}
		fdr[n-1-rank] = f
		worst[n-1-rank] = scores[idx]
	}

	qvals := FDRToQValues(worst, fdr)

	out := make([]float64, n)
	for rank, idx := range order {
		out[idx] = qvals[n-1-rank]
	}
	return out, nil
}

// FDRToQValues converts FDR estimates to q-values. scores must be ordered
// worst to best and fdr aligned with them. Within a run of tied scores the
// first entry is assumed to account for all of the tied hits, so every hit
// in the run gets the same q-value.
func FDRToQValues(scores, fdr []float64) []float64 {
	qvals := make([]float64, len(fdr))
	minQ := 1.0
	start := 0
	for idx := range qvals {
		if idx < len(qvals)-1 && scores[idx+1] == scores[start] {
			continue
		}
		if fdr[start] < minQ {
			minQ = fdr[start]
		}
		for k := start; k <= idx; k++ {
			qvals[k] = minQ
		}
		start = idx + 1
	}
	return qvals
}

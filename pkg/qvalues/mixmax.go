package qvalues

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// MixMax estimates q-values for target hits using mix-max competition.
//
// targetScores and decoyScores hold the best target and best decoy score of
// each spectrum, sorted ascending with larger scores being better.
// combinedScores and combinedTarget hold the union of those hits sorted from
// best to worst. The returned q-values are aligned with targetScores.
func MixMax(targetScores, decoyScores, combinedScores []float64, combinedTarget []bool, rng *rand.Rand) (pi0 float64, qvals []float64, err error) {
	if len(combinedScores) != len(combinedTarget) {
		return 0, nil, fmt.Errorf("%w: %d scores, %d labels", ErrLengthMismatch, len(combinedScores), len(combinedTarget))
	}

	pvals := empiricalPValues(combinedTarget)

	pi0, err = EstimatePi0(pvals, rng)
	if err != nil {
		return 0, nil, err
	}

	if pi0 == 1 {
		// Every target is assumed to be incorrect.
		qvals = make([]float64, len(targetScores))
		for i := range qvals {
			qvals[i] = 1
		}
		return pi0, qvals, nil
	}
	if err := checkPi0(pi0); err != nil {
		return pi0, nil, err
	}

	return pi0, mixMaxQValues(targetScores, decoyScores, pi0), nil
}

// empiricalPValues assigns each target the fraction of decoys scoring at
// least as well, counting from one. Each hit is its own block, so ties
// between a target and a decoy are not pooled.
func empiricalPValues(combinedTarget []bool) []float64 {
	nDecoys := 1
	var pvals []float64
	for _, target := range combinedTarget {
		posSame, negSame := 0, 0
		if target {
			posSame++
		} else {
			negSame++
		}
		for ix := range posSame {
			pvals = append(pvals, float64(nDecoys)+float64(negSame*(ix+1))/float64(posSame+1))
		}
		nDecoys += negSame
	}
	for i := range pvals {
		pvals[i] /= float64(nDecoys)
	}
	return pvals
}

// mixMaxQValues follows the notation of Keich et al., Supplementary Note 3.
func mixMaxQValues(targetScores, decoyScores []float64, pi0 float64) []float64 {
	numTargets := len(targetScores)
	numDecoys := len(decoyScores)

	// N_{w<=z} and N_{z<=z} for every decoy score z.
	hWLeZ := make([]float64, numDecoys)
	hZLeZ := make([]float64, numDecoys)
	for j, z := range decoyScores {
		hWLeZ[j] = float64(searchRight(targetScores, z))
		hZLeZ[j] = float64(searchRight(decoyScores, z))
	}

	fdrmod := make([]float64, numTargets)
	var eF1ModRunTot float64
	nZGeW := 0
	j := numDecoys - 1
	for i := numTargets - 1; i >= 0; i-- {
		for j >= 0 && decoyScores[j] >= targetScores[i] {
			cntW, cntZ := hWLeZ[j], hZLeZ[j]
			estPx := (cntW - pi0*cntZ) / ((1 - pi0) * cntZ)
			estPx = max(min(estPx, 1), 0)

			eF1ModRunTot += estPx * (1 - pi0)
			nZGeW++
			j--
		}

		nWGeW := numTargets - sort.SearchFloat64s(targetScores, targetScores[i])
		fdr := (float64(nZGeW)*pi0 + eF1ModRunTot) / float64(nWGeW)
		fdrmod[i] = min(fdr, 1)
	}

	return FDRToQValues(targetScores, fdrmod)
}

// searchRight returns the number of values in sorted that are <= x.
func searchRight(sorted []float64, x float64) int {
	return sort.Search(len(sorted), func(i int) bool { return sorted[i] > x })
}

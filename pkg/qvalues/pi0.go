package qvalues

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const (
	numLambda = 100
	maxLambda = 0.5
	numBoot   = 100
	maxDraw   = 1000
)

// EstimatePi0 estimates the proportion of null target hits from p-values
// sorted in ascending order. pi0 is computed over a grid of lambda values
// and the lambda that is most stable under bootstrap resampling is chosen.
// The result is clamped to [0, 1]. rng drives the bootstrap.
func EstimatePi0(pvals []float64, rng *rand.Rand) (float64, error) {
	n := len(pvals)
	if n == 0 {
		return 1, nil
	}

	var lambdas, pi0s []float64
	for i := range numLambda {
		lambda := float64(i+1) / numLambda * maxLambda
		pi0 := pi0At(pvals, lambda)
		if pi0 > 0 {
			lambdas = append(lambdas, lambda)
			pi0s = append(pi0s, pi0)
		}
	}
	if len(pi0s) == 0 {
		return 0, ErrPerfectSeparation
	}

	minPi0 := floats.Min(pi0s)

	mse := make([]float64, len(pi0s))
	numDraw := min(n, maxDraw)
	boot := make([]float64, numDraw)
	for range numBoot {
		for k := range boot {
			boot[k] = pvals[rng.IntN(n)]
		}
		slices.Sort(boot)

		for i, lambda := range lambdas {
			d := pi0At(boot, lambda) - minPi0
			mse[i] += d * d
		}
	}

	pi0 := pi0s[floats.MinIdx(mse)]
	return max(min(pi0, 1), 0), nil
}

// pi0At is the fraction of p-values at or above lambda, scaled by 1-lambda.
func pi0At(sorted []float64, lambda float64) float64 {
	n := len(sorted)
	w := n - sort.SearchFloat64s(sorted, lambda)
	return float64(w) / float64(n) / (1 - lambda)
}

// checkPi0 rejects estimates that cannot be used for mix-max FDR.
func checkPi0(pi0 float64) error {
	if pi0 < 0 || pi0 >= 1 || math.IsNaN(pi0) || math.IsInf(pi0, 0) {
		return fmt.Errorf("%w (%g); unable to proceed with FDR estimation", ErrInvalidPi0, pi0)
	}
	return nil
}

package qvalues

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// runMixMax prepares mix-max inputs from one hit per spectrum and returns
// the q-values ordered best to worst.
func runMixMax(t *testing.T, scores []float64, target []bool, desc bool, seed uint64) (float64, []float64, error) {
	t.Helper()

	type hit struct {
		score  float64
		target bool
	}
	var tgt, dec []float64
	combined := make([]hit, len(scores))
	for i, s := range scores {
		if !desc {
			s = -s
		}
		combined[i] = hit{s, target[i]}
		if target[i] {
			tgt = append(tgt, s)
		} else {
			dec = append(dec, s)
		}
	}
	slices.Sort(tgt)
	slices.Sort(dec)
	sort.SliceStable(combined, func(i, j int) bool { return combined[i].score > combined[j].score })

	combinedScores := make([]float64, len(combined))
	combinedTarget := make([]bool, len(combined))
	for i, h := range combined {
		combinedScores[i] = h.score
		combinedTarget[i] = h.target
	}

	pi0, qvals, err := MixMax(tgt, dec, combinedScores, combinedTarget, rand.New(rand.NewPCG(seed, seed)))
	slices.Reverse(qvals)
	return pi0, qvals, err
}

func TestMixMaxSingular(t *testing.T) {
	// Lower scores are better here, so the targets are mostly outscored by
	// decoys and every target is considered null.
	scores, target, _ := descScores()
	pi0, qvals, err := runMixMax(t, scores, target, false, 0)
	if err != nil {
		t.Fatalf("MixMax() error = %v", err)
	}
	if pi0 != 1 {
		t.Errorf("Expected pi0 = 1, got %g", pi0)
	}
	if len(qvals) != 8 {
		t.Fatalf("Expected 8 q-values, got %d", len(qvals))
	}
	for i, q := range qvals {
		if q != 1 {
			t.Errorf("q-value %d: expected 1, got %g", i, q)
		}
	}
}

func TestMixMaxWorkedExample(t *testing.T) {
	// Scores are normalized so that larger is better; targets and decoys
	// are ordered worst to best.
	targetScores := []float64{-7, -5, -3, -2, -1, -1, -1, -1}
	decoyScores := []float64{-10, -10, -9, -8, -7, -6, -4, -2}
	want := []float64{0, 0, 0, 0, 1. / 12, 1. / 12, 0.1122449, 0.14671053}
	const wantPi0 = 0.125 / 0.665

	const T, D = true, false
	tests := []struct {
		name           string
		combinedScores []float64
		combinedTarget []bool
	}{
		{
			name:           "higher is better",
			combinedScores: []float64{1, 1, 1, 1, 2, 2, 3, 4, 5, 6, 7, 7, 8, 9, 10, 10},
			combinedTarget: []bool{T, T, T, T, D, T, T, D, T, D, D, T, D, D, D, D},
		},
		{
			name:           "lower is better",
			combinedScores: []float64{-1, -1, -1, -1, -2, -2, -3, -4, -5, -6, -7, -7, -8, -9, -10, -10},
			combinedTarget: []bool{T, T, T, T, T, D, T, D, T, D, T, D, D, D, D, D},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, seed := range []uint64{0, 1, 42} {
				pi0, qvals, err := MixMax(targetScores, decoyScores, tt.combinedScores, tt.combinedTarget,
					rand.New(rand.NewPCG(seed, seed)))
				if err != nil {
					t.Fatalf("seed %d: MixMax() error = %v", seed, err)
				}
				if math.Abs(pi0-wantPi0) > 1e-4 {
					t.Errorf("seed %d: expected pi0 = %g, got %g", seed, wantPi0, pi0)
				}

				slices.Reverse(qvals)
				if diff := cmp.Diff(want, qvals, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
					t.Errorf("seed %d: q-values mismatch (-want +got):\n%s", seed, diff)
				}
			}
		})
	}
}

func normalHits(seed uint64, n int) ([]float64, []bool) {
	rng := rand.New(rand.NewPCG(seed, seed))
	scores := make([]float64, 0, 2*n)
	target := make([]bool, 0, 2*n)
	for range n {
		scores = append(scores, 10+2*rng.NormFloat64())
		target = append(target, true)
	}
	for range n {
		scores = append(scores, 7+2*rng.NormFloat64())
		target = append(target, false)
	}
	return scores, target
}

func TestMixMaxNonsingular(t *testing.T) {
	scores, target := normalHits(42, 200)

	for _, desc := range []bool{true, false} {
		in := slices.Clone(scores)
		if !desc {
			for i := range in {
				in[i] = -in[i]
			}
		}

		pi0, qvals, err := runMixMax(t, in, target, desc, 3)
		if err != nil {
			t.Fatalf("desc=%v: MixMax() error = %v", desc, err)
		}
		if pi0 <= 0 || pi0 >= 1 {
			t.Errorf("desc=%v: expected pi0 in (0, 1), got %g", desc, pi0)
		}
		if len(qvals) != 200 {
			t.Fatalf("desc=%v: expected 200 q-values, got %d", desc, len(qvals))
		}
		if !slices.ContainsFunc(qvals, func(q float64) bool { return q < 1 }) {
			t.Errorf("desc=%v: expected some q-values below 1", desc)
		}
		for i := 1; i < len(qvals); i++ {
			if qvals[i] < qvals[i-1] {
				t.Fatalf("desc=%v: q-values decrease at rank %d: %g < %g", desc, i, qvals[i], qvals[i-1])
			}
		}
	}
}

func TestMixMaxDirectionInvariant(t *testing.T) {
	scores, target := normalHits(11, 100)
	neg := make([]float64, len(scores))
	for i, s := range scores {
		neg[i] = -s
	}

	pi0Desc, qDesc, err := runMixMax(t, scores, target, true, 5)
	if err != nil {
		t.Fatalf("MixMax() error = %v", err)
	}
	pi0Asc, qAsc, err := runMixMax(t, neg, target, false, 5)
	if err != nil {
		t.Fatalf("MixMax() error = %v", err)
	}

	if pi0Desc != pi0Asc {
		t.Errorf("Expected equal pi0, got %g and %g", pi0Desc, pi0Asc)
	}
	if diff := cmp.Diff(qDesc, qAsc); diff != "" {
		t.Errorf("q-value mismatch (-desc +asc):\n%s", diff)
	}
}

func TestMixMaxPerfectSeparation(t *testing.T) {
	var scores []float64
	var target []bool
	for i := range 5 {
		scores = append(scores, float64(1000+i))
		target = append(target, true)
	}
	for i := range 300 {
		scores = append(scores, float64(-i))
		target = append(target, false)
	}

	_, _, err := runMixMax(t, scores, target, true, 0)
	if !errors.Is(err, ErrPerfectSeparation) {
		t.Errorf("Expected ErrPerfectSeparation, got %v", err)
	}
}

func TestMixMaxLengthMismatch(t *testing.T) {
	_, _, err := MixMax([]float64{1}, []float64{0}, []float64{1, 0}, []bool{true}, rand.New(rand.NewPCG(0, 0)))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Expected ErrLengthMismatch, got %v", err)
	}
}

func TestEmpiricalPValues(t *testing.T) {
	got := empiricalPValues([]bool{true, true, false, true, false, false, true})
	want := []float64{1. / 4, 1. / 4, 2. / 4, 4. / 4}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("empiricalPValues() mismatch (-want +got):\n%s", diff)
	}
}

func TestEstimatePi0(t *testing.T) {
	tests := []struct {
		name    string
		pvals   []float64
		want    float64
		wantErr error
	}{
		{
			name:  "no p-values",
			pvals: nil,
			want:  1,
		},
		{
			name:  "all above one half",
			pvals: []float64{6. / 9, 7. / 9, 8. / 9, 1, 1, 1, 1, 1},
			want:  1,
		},
		{
			name:    "all below the smallest lambda",
			pvals:   []float64{0.001, 0.002, 0.003},
			wantErr: ErrPerfectSeparation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EstimatePi0(tt.pvals, rand.New(rand.NewPCG(0, 0)))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EstimatePi0() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected pi0 = %g, got %g", tt.want, got)
			}
		})
	}
}

func TestEstimatePi0Uniform(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	pvals := make([]float64, 5000)
	for i := range pvals {
		pvals[i] = rng.Float64()
	}
	slices.Sort(pvals)

	pi0, err := EstimatePi0(pvals, rng)
	if err != nil {
		t.Fatalf("EstimatePi0() error = %v", err)
	}
	if math.Abs(pi0-1) > 0.1 {
		t.Errorf("Expected pi0 near 1 for uniform p-values, got %g", pi0)
	}
}

func TestCheckPi0(t *testing.T) {
	for _, pi0 := range []float64{-0.1, 1, 1.5, math.NaN(), math.Inf(1)} {
		if err := checkPi0(pi0); !errors.Is(err, ErrInvalidPi0) {
			t.Errorf("checkPi0(%g): expected ErrInvalidPi0, got %v", pi0, err)
		}
	}
	if err := checkPi0(0.4); err != nil {
		t.Errorf("checkPi0(0.4): unexpected error %v", err)
	}
}

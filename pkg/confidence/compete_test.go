package confidence

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/crema/pkg/core"
)

func TestCompeteKeepsBestPerGroup(t *testing.T) {
	rng := NewRand(3)
	var rows []core.Row
	for range 200 {
		rows = append(rows, core.Row{
			Peptide: fmt.Sprintf("PEP%dK", rng.IntN(30)),
			Score:   float64(rng.IntN(50)),
		})
	}

	for _, desc := range []bool{true, false} {
		best := make(map[string]float64)
		for _, r := range rows {
			cur, ok := best[r.Peptide]
			if !ok || (desc && r.Score > cur) || (!desc && r.Score < cur) {
				best[r.Peptide] = r.Score
			}
		}

		out := compete(rows, peptideKey, desc, rng)
		require.Len(t, out, len(best))

		seen := make(map[string]bool)
		for i, r := range out {
			assert.False(t, seen[r.Peptide], "duplicate group %s", r.Peptide)
			seen[r.Peptide] = true
			assert.Equal(t, best[r.Peptide], r.Score, r.Peptide)
			if i > 0 && desc {
				assert.LessOrEqual(t, r.Score, out[i-1].Score)
			}
			if i > 0 && !desc {
				assert.GreaterOrEqual(t, r.Score, out[i-1].Score)
			}
		}
	}
}

func TestCompeteBreaksTiesRandomly(t *testing.T) {
	rows := []core.Row{
		{Peptide: "FIRST", Spectrum: []string{"1"}, Score: 5},
		{Peptide: "SECOND", Spectrum: []string{"1"}, Score: 5},
		{Peptide: "WORSE", Spectrum: []string{"1"}, Score: 1},
	}

	wins := make(map[string]int)
	rng := NewRand(0)
	for range 200 {
		out := compete(rows, spectrumKey, true, rng)
		require.Len(t, out, 1)
		wins[out[0].Peptide]++
	}

	assert.Zero(t, wins["WORSE"])
	assert.Greater(t, wins["FIRST"], 50)
	assert.Greater(t, wins["SECOND"], 50)
}

func TestCompeteLeavesInputAlone(t *testing.T) {
	rows := []core.Row{
		{Peptide: "A", Score: 1},
		{Peptide: "B", Score: 2},
		{Peptide: "C", Score: 3},
	}
	compete(rows, peptideKey, true, NewRand(1))
	assert.Equal(t, []string{"A", "B", "C"}, peptideNames(rows))
}

func TestNewAggregator(t *testing.T) {
	scores := []float64{0.5, 0.2, 0.4}

	tests := []struct {
		how  ProtFDRType
		desc bool
		want float64
	}{
		{Best, true, 0.5},
		{Best, false, 0.2},
		{Combine, true, 1.1},
		{Combine, false, 0.04},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s desc=%v", tt.how, tt.desc), func(t *testing.T) {
			assert.InDelta(t, tt.want, newAggregator(tt.how, tt.desc)(scores), 1e-12)
		})
	}
}

func TestAggregate(t *testing.T) {
	rows := []core.Row{
		{Protein: "p2", Target: true, Score: 1},
		{Protein: "p1", Target: true, Score: 3},
		{Protein: "p2", Target: true, Score: 4},
		{Protein: "p2", Target: false, Score: 2},
	}

	out := aggregate(rows, newAggregator(Best, true))
	assert.Equal(t, []core.Row{
		{Protein: "p2", Target: true, Score: 4},
		{Protein: "p1", Target: true, Score: 3},
		{Protein: "p2", Target: false, Score: 2},
	}, out)
}

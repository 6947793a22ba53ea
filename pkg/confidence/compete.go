package confidence

import (
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/ChrisMcGann/crema/pkg/core"
)

// keyFunc returns the competition group of a row.
type keyFunc func(r *core.Row) string

func spectrumKey(r *core.Row) string { return r.SpectrumKey() }
func peptideKey(r *core.Row) string  { return r.Peptide }
func proteinKey(r *core.Row) string  { return r.Protein }

// compete keeps the best scoring row of each group. Rows are shuffled first
// so that a tie for the best score is won by a random row. The winners are
// returned best score first.
func compete(rows []core.Row, key keyFunc, desc bool, rng *rand.Rand) []core.Row {
	shuffled := slices.Clone(rows)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	keys := make([]string, len(shuffled))
	for i := range shuffled {
		keys[i] = key(&shuffled[i])
	}
	idx := make([]int, len(shuffled))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := &shuffled[idx[a]], &shuffled[idx[b]]
		if ra.Score != rb.Score {
			return ra.Score < rb.Score
		}
		return keys[idx[a]] < keys[idx[b]]
	})

	// Ascending order puts the best row of a group last when higher
	// scores are better, so walk from the back in that case.
	if desc {
		slices.Reverse(idx)
	}
	seen := make(map[string]bool)
	out := make([]core.Row, 0, len(idx))
	for _, i := range idx {
		if seen[keys[i]] {
			continue
		}
		seen[keys[i]] = true
		out = append(out, shuffled[i])
	}
	return out
}

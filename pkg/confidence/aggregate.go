package confidence

import (
	"gonum.org/v1/gonum/floats"

	"github.com/ChrisMcGann/crema/pkg/core"
)

// aggregator reduces the PSM scores of one protein to a single score.
type aggregator func(scores []float64) float64

// newAggregator returns the aggregation for a protein FDR type: the best
// score, or the sum (higher is better) or product (lower is better).
func newAggregator(how ProtFDRType, desc bool) aggregator {
	switch {
	case how == Combine && desc:
		return floats.Sum
	case how == Combine:
		return floats.Prod
	case desc:
		return floats.Max
	default:
		return floats.Min
	}
}

// aggregate collapses rows sharing a protein and target label into one row
// per pair, in order of first appearance.
func aggregate(rows []core.Row, agg aggregator) []core.Row {
	type groupKey struct {
		protein string
		target  bool
	}

	var order []groupKey
	scores := make(map[groupKey][]float64)
	for _, r := range rows {
		k := groupKey{r.Protein, r.Target}
		if _, ok := scores[k]; !ok {
			order = append(order, k)
		}
		scores[k] = append(scores[k], r.Score)
	}

	out := make([]core.Row, len(order))
	for i, k := range order {
		out[i] = core.Row{
			Protein: k.protein,
			Target:  k.target,
			Score:   agg(scores[k]),
		}
	}
	return out
}

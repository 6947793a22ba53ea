package confidence

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/crema/pkg/core"
)

// basicPSMs is a small Crux-like search with two PSMs per spectrum.
func basicPSMs(t *testing.T) *core.Dataset {
	t.Helper()

	type rec struct {
		scan    string
		pval    float64
		peptide string
		target  bool
		x       float64
		protein string
	}
	recs := []rec{
		{"1", 0.7, "APPLE", true, 0.7, "p1"},
		{"2", 0.4, "ANANAB", false, 0.1, "p2"},
		{"3", 0.1, "CHERRY", true, 0.2, "p3"},
		{"4", 0.55, "DURIAN", true, 0.8, "p4"},
		{"5", 0.25, "EGGPLANT", true, 0.25, "p5"},
		{"1", 0.6, "FIG", true, 0.6, "p6"},
		{"2", 0.2, "GARPE", false, 0.2, "p7"},
		{"3", 0.7, "HEONDEYW", false, 0.4, "p8"},
		{"4", 0.56, "ICE", true, 0.56, "p9"},
		{"5", 0.3, "JMA", false, 0.3, "p10"},
	}

	psms := make([]core.PSM, len(recs))
	for i, r := range recs {
		psms[i] = core.PSM{
			Spectrum: []string{"f1", r.scan},
			Scores:   []float64{r.pval, r.x},
			Target:   r.target,
			Peptide:  r.peptide,
			Proteins: r.protein,
		}
	}
	ds, err := core.NewDataset(psms, core.Schema{
		TargetColumn:    "target",
		SpectrumColumns: []string{"file", "scan"},
		ScoreColumns:    []string{"combined p-value", "x"},
		PeptideColumn:   "sequence",
		ProteinColumn:   "protein id",
		ProteinDelim:    ",",
	})
	require.NoError(t, err)
	return ds
}

func peptideNames(rows []core.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Peptide
	}
	return out
}

func proteinNames(rows []core.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Protein
	}
	return out
}

func qvals(rows []core.Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.QValue
	}
	return out
}

func TestAssignPSMOnly(t *testing.T) {
	opts := DefaultOptions()
	opts.ScoreColumn = "x"
	opts.Desc = Bool(true)
	opts.PepFDRType = PSMOnly
	opts.Threshold = FDRThreshold(0.3)

	conf, err := Assign(basicPSMs(t), nil, opts)
	require.NoError(t, err)

	assert.Equal(t, "x", conf.ScoreColumn)
	assert.True(t, conf.Desc)
	assert.Equal(t, []Level{PSMs, Peptides, Proteins, ProteinGroups}, conf.Levels)

	psms := conf.Table(PSMs)
	assert.Equal(t, []string{"DURIAN", "APPLE"}, peptideNames(psms.Rows))
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, qvals(psms.Rows), 1e-12)
	assert.Equal(t, []string{"HEONDEYW", "JMA", "GARPE"}, peptideNames(conf.DecoyTable(PSMs).Rows))
	assert.Equal(t, []string{"file", "scan", "sequence", "protein id", "x", core.QValueColumn, core.AcceptColumn},
		psms.Layout.Header())

	peps := conf.Table(Peptides)
	assert.Equal(t, []string{"DURIAN", "APPLE", "FIG", "ICE", "EGGPLANT", "CHERRY"}, peptideNames(peps.Rows))
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25, 0.6, 4.0 / 6}, qvals(peps.Rows), 1e-12)
	assert.Equal(t, 4, peps.CountAccepted(0.3))
	for i, r := range peps.Rows {
		assert.Equal(t, i < 4, r.Accept, r.Peptide)
	}

	prots := conf.Table(Proteins)
	assert.Equal(t, []string{"p4", "p1"}, proteinNames(prots.Rows))
	assert.Equal(t, []string{"protein id", "x", core.QValueColumn, core.AcceptColumn}, prots.Layout.Header())

	// Nothing passes 1% at the peptide level, so there is nothing to group.
	assert.Empty(t, conf.Table(ProteinGroups).Rows)
	assert.Empty(t, conf.DecoyTable(ProteinGroups).Rows)
}

func TestAssignSelectsBestScore(t *testing.T) {
	opts := DefaultOptions()
	opts.EvalFDR = 0.4
	opts.PepFDRType = PSMOnly

	conf, err := Assign(basicPSMs(t), nil, opts)
	require.NoError(t, err)
	assert.Equal(t, "x", conf.ScoreColumn)
	assert.True(t, conf.Desc)
}

func TestAssignInfersDirection(t *testing.T) {
	opts := DefaultOptions()
	opts.ScoreColumn = "x"
	opts.EvalFDR = 0.5
	opts.PepFDRType = PSMOnly

	conf, err := Assign(basicPSMs(t), nil, opts)
	require.NoError(t, err)
	assert.True(t, conf.Desc)
}

func TestAssignQValueThreshold(t *testing.T) {
	opts := DefaultOptions()
	opts.ScoreColumn = "x"
	opts.Desc = Bool(true)
	opts.PepFDRType = PSMOnly
	opts.Threshold = Threshold{QValue: true}

	conf, err := Assign(basicPSMs(t), nil, opts)
	require.NoError(t, err)

	table := conf.Table(PSMs)
	assert.False(t, table.Layout.Accept)
	assert.NotContains(t, table.Layout.Header(), core.AcceptColumn)
	for _, r := range table.Rows {
		assert.False(t, r.Accept)
	}
}

func TestAssignErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(o *Options)
		pairing *core.PeptidePairing
		wantErr error
	}{
		{
			name:    "pairing required",
			modify:  func(o *Options) {},
			wantErr: ErrPairingRequired,
		},
		{
			name:    "mix-max without desc",
			modify:  func(o *Options) { o.Method = MixMax },
			wantErr: ErrDescRequired,
		},
		{
			name:    "eval fdr out of range",
			modify:  func(o *Options) { o.EvalFDR = 1.5 },
			wantErr: ErrInvalidEvalFDR,
		},
		{
			name:    "bad pep fdr type",
			modify:  func(o *Options) { o.PepFDRType = "peptide" },
			wantErr: ErrInvalidPepFDRType,
		},
		{
			name:    "bad prot fdr type",
			modify:  func(o *Options) { o.ProtFDRType = "worst" },
			wantErr: ErrInvalidProtFDRType,
		},
		{
			name:    "bad method",
			modify:  func(o *Options) { o.Method = "percolator" },
			wantErr: ErrInvalidMethod,
		},
		{
			name:    "threshold out of range",
			modify:  func(o *Options) { o.Threshold = FDRThreshold(-1) },
			wantErr: ErrInvalidThreshold,
		},
		{
			name: "unknown score column",
			modify: func(o *Options) {
				o.PepFDRType = PSMOnly
				o.ScoreColumn = "xcorr"
			},
			wantErr: core.ErrUnknownColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			_, err := Assign(basicPSMs(t), tt.pairing, opts)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// pairedSearch has 120 well scored targets and 20 poorly scored decoys,
// each decoy paired with a target. Target i maps to p<i%10>, and also to
// q<i%10> when i is even.
func pairedSearch(t *testing.T) (*core.Dataset, *core.PeptidePairing) {
	t.Helper()

	var psms []core.PSM
	pairs := make(map[string]string)
	for i := range 120 {
		proteins := fmt.Sprintf("p%d", i%10)
		if i%2 == 0 {
			proteins += fmt.Sprintf(",q%d", i%10)
		}
		psms = append(psms, core.PSM{
			Spectrum: []string{fmt.Sprint(i)},
			Scores:   []float64{float64(100 + i)},
			Target:   true,
			Peptide:  fmt.Sprintf("PEP%dK", i),
			Proteins: proteins,
		})
	}
	for i := range 20 {
		decoy := fmt.Sprintf("KPEP%d", i)
		psms = append(psms, core.PSM{
			Spectrum: []string{fmt.Sprint(200 + i)},
			Scores:   []float64{float64(i)},
			Target:   false,
			Peptide:  decoy,
			Proteins: fmt.Sprintf("decoy_p%d", i%10),
		})
		pairs[fmt.Sprintf("PEP%dK", i)] = decoy
	}

	ds, err := core.NewDataset(psms, core.Schema{
		TargetColumn:    "label",
		SpectrumColumns: []string{"scan"},
		ScoreColumns:    []string{"score"},
		PeptideColumn:   "peptide",
		ProteinColumn:   "proteins",
		ProteinDelim:    ",",
	})
	require.NoError(t, err)
	return ds, core.NewPeptidePairing(pairs)
}

func TestAssignProteinGroups(t *testing.T) {
	ds, pairing := pairedSearch(t)
	opts := DefaultOptions()
	opts.Desc = Bool(true)

	conf, err := Assign(ds, pairing, opts)
	require.NoError(t, err)

	// Each decoy loses to its paired target.
	peps := conf.Table(Peptides)
	assert.Len(t, peps.Rows, 120)
	assert.Empty(t, conf.DecoyTable(Peptides).Rows)
	assert.Equal(t, 120, peps.CountAccepted(0.01))

	prots := conf.Table(Proteins)
	assert.ElementsMatch(t, []string{"p1", "p3", "p5", "p7", "p9"}, proteinNames(prots.Rows))
	assert.Len(t, conf.DecoyTable(Proteins).Rows, 10)

	groups := conf.Table(ProteinGroups)
	assert.ElementsMatch(t, []string{
		"p0,q0", "p1", "p2,q2", "p3", "p4,q4", "p5", "p6,q6", "p7", "p8,q8", "p9",
	}, proteinNames(groups.Rows))
	assert.Equal(t, []string{core.ProteinGroupColumn, "score", core.QValueColumn, core.AcceptColumn},
		groups.Layout.Header())

	// The best peptide of group p9 is PEP119K.
	for _, r := range groups.Rows {
		if r.Protein == "p9" {
			assert.Equal(t, 219.0, r.Score)
		}
	}
}

func TestAssignCombineScores(t *testing.T) {
	ds, pairing := pairedSearch(t)
	opts := DefaultOptions()
	opts.Desc = Bool(true)
	opts.ProtFDRType = Combine

	conf, err := Assign(ds, pairing, opts)
	require.NoError(t, err)

	// p9 collects PEP9K, PEP19K, ..., PEP119K.
	want := 0.0
	for i := 9; i < 120; i += 10 {
		want += float64(100 + i)
	}
	for _, r := range conf.Table(Proteins).Rows {
		if r.Protein == "p9" {
			assert.Equal(t, want, r.Score)
		}
	}
}

func TestAssignWithoutProteins(t *testing.T) {
	psms := []core.PSM{
		{Spectrum: []string{"1"}, Scores: []float64{3}, Target: true, Peptide: "AAK"},
		{Spectrum: []string{"2"}, Scores: []float64{2}, Target: true, Peptide: "CCK"},
		{Spectrum: []string{"3"}, Scores: []float64{1}, Target: false, Peptide: "KAA"},
	}
	ds, err := core.NewDataset(psms, core.Schema{
		TargetColumn:    "label",
		SpectrumColumns: []string{"scan"},
		ScoreColumns:    []string{"score"},
		PeptideColumn:   "peptide",
	})
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Desc = Bool(true)
	conf, err := Assign(ds, core.NewPeptidePairing(map[string]string{"AAK": "KAA"}), opts)
	require.NoError(t, err)

	assert.Equal(t, []Level{PSMs, Peptides}, conf.Levels)
	assert.Nil(t, conf.Table(Proteins))
	assert.Equal(t, []string{"scan", "peptide", "score", core.QValueColumn, core.AcceptColumn},
		conf.Table(PSMs).Layout.Header())
}

func TestAssignIsReproducible(t *testing.T) {
	// Heavily tied scores make every competition depend on the generator.
	rng := rand.New(rand.NewPCG(1, 2))
	var psms []core.PSM
	for i := range 300 {
		psms = append(psms, core.PSM{
			Spectrum: []string{fmt.Sprint(i % 100)},
			Scores:   []float64{float64(rng.IntN(5))},
			Target:   rng.IntN(3) > 0,
			Peptide:  fmt.Sprintf("PEP%dK", rng.IntN(60)),
			Proteins: fmt.Sprintf("p%d", rng.IntN(10)),
		})
	}
	ds, err := core.NewDataset(psms, core.Schema{
		TargetColumn:    "label",
		SpectrumColumns: []string{"scan"},
		ScoreColumns:    []string{"score"},
		PeptideColumn:   "peptide",
		ProteinColumn:   "proteins",
		ProteinDelim:    ",",
	})
	require.NoError(t, err)

	run := func() *Confidence {
		opts := DefaultOptions()
		opts.Desc = Bool(true)
		opts.PepFDRType = PSMOnly
		opts.Rand = NewRand(42)
		conf, err := Assign(ds, nil, opts)
		require.NoError(t, err)
		return conf
	}
	assert.Equal(t, run(), run())
}

package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ChrisMcGann/crema/pkg/core"
)

func observedOptions() (Options, *observer.ObservedLogs) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	opts := DefaultOptions()
	opts.Logger = zap.New(obsCore)
	return opts, logs
}

func TestAssignLogsTDC(t *testing.T) {
	opts, logs := observedOptions()
	opts.ScoreColumn = "x"
	opts.Desc = Bool(true)
	opts.PepFDRType = PSMOnly
	opts.EvalFDR = 0.3

	_, err := Assign(basicPSMs(t), nil, opts)
	require.NoError(t, err)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("PSM-level FDR")
	assert.Equal(t, 1, warnings.Len())

	found := logs.FilterMessageSnippet("Found accepted")
	require.Equal(t, 4, found.Len(), "one entry per level")

	passing := make(map[string]int64)
	for _, entry := range found.All() {
		fields := entry.ContextMap()
		assert.InDelta(t, 0.3, fields["eval_fdr"], 1e-12)
		passing[fields["level"].(string)] = fields["passing"].(int64)
	}
	assert.Equal(t, int64(0), passing["psms"])
	assert.Equal(t, int64(4), passing["peptides"])
}

func TestAssignLogsMixMaxImbalance(t *testing.T) {
	full := separateSearchPSMs(t, 200, 0, true)
	psms := full.PSMs()
	ds, err := core.NewDataset(psms[:len(psms)-1], full.Schema())
	require.NoError(t, err)

	opts, logs := observedOptions()
	opts.Method = MixMax
	opts.ScoreColumn = "score"
	opts.Desc = Bool(true)

	_, err = Assign(ds, nil, opts)
	require.NoError(t, err)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("# targets != # decoys")
	require.Equal(t, 1, warnings.Len())
	fields := warnings.All()[0].ContextMap()
	assert.Equal(t, int64(200), fields["targets"])
	assert.Equal(t, int64(199), fields["decoys"])

	assert.Equal(t, 0, logs.FilterMessageSnippet("PSM-level FDR").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Estimated pi_zero").Len())
}

func TestAssignLogsNothingByDefault(t *testing.T) {
	opts := DefaultOptions()
	opts.ScoreColumn = "x"
	opts.Desc = Bool(true)
	opts.PepFDRType = PSMOnly
	require.Nil(t, opts.Logger)

	_, err := Assign(basicPSMs(t), nil, opts)
	assert.NoError(t, err)
}

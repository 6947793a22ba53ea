// Package crux reads the tab-delimited PSM files written by Crux and Tide
package crux

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shenwei356/xopen"
	"go.uber.org/zap"

	"github.com/ChrisMcGann/crema/pkg/core"
	"github.com/ChrisMcGann/crema/pkg/reader/txt"
)

// Fixed Crux column names.
const (
	TargetColumn   = "target/decoy"
	PeptideColumn  = "sequence"
	ProteinColumn  = "protein id"
	ProteinDelim   = ","
	MassColumn     = "peptide mass"
	OriginalColumn = "original target sequence"
)

// SpectrumColumns together identify a spectrum in Crux output.
var SpectrumColumns = []string{"scan", "spectrum precursor m/z"}

// ScoreColumns are the score columns Crux may write.
var ScoreColumns = []string{
	"sp score",
	"delta_cn",
	"delta_lcn",
	"xcorr score",
	"exact p-value",
	"refactored xcorr",
	"res-ev p-value",
	"combined p-value",
	"tailor score",
}

var ErrNoScoreColumns = errors.New("could not find any of the Crux score columns in all of the files")

// massPrecision is the number of decimals peptide masses are compared at.
const massPrecision = 4

// DiscoverSchema reads the header of every file and returns the schema of
// the Crux score columns present in all of them. The protein column is used
// only when every file has it.
func DiscoverSchema(paths []string) (core.Schema, error) {
	schema := core.Schema{
		TargetColumn:    TargetColumn,
		SpectrumColumns: append([]string(nil), SpectrumColumns...),
		PeptideColumn:   PeptideColumn,
	}

	present := make(map[string]int)
	for _, path := range paths {
		header, err := readHeader(path)
		if err != nil {
			return schema, err
		}
		seen := make(map[string]bool, len(header))
		for _, col := range header {
			if !seen[col] {
				seen[col] = true
				present[col]++
			}
		}
	}

	for _, col := range ScoreColumns {
		if present[col] == len(paths) {
			schema.ScoreColumns = append(schema.ScoreColumns, col)
		}
	}
	if len(schema.ScoreColumns) == 0 {
		return schema, fmt.Errorf("%w; the columns crema looks for are %s",
			ErrNoScoreColumns, strings.Join(ScoreColumns, ", "))
	}
	if len(paths) > 0 && present[ProteinColumn] == len(paths) {
		schema.ProteinColumn = ProteinColumn
		schema.ProteinDelim = ProteinDelim
	}
	return schema, nil
}

func readHeader(path string) ([]string, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()

	cr := newCSVReader(fh)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	return cr
}

// ReadDataset reads Crux PSM files into a dataset and builds the
// target/decoy peptide pairing from the decoy rows' original target
// sequences. Peptide masses are computed with modDB for files that have
// no peptide mass column.
func ReadDataset(paths []string, modDB *core.ModDatabase, logger *zap.Logger) (*core.Dataset, *core.PeptidePairing, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}

	schema, err := DiscoverSchema(paths)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Discovered Crux score columns", zap.Strings("columns", schema.ScoreColumns))

	ds, err := txt.ReadDataset(paths, schema, '\t', logger)
	if err != nil {
		return nil, nil, err
	}

	var targets, decoys []peptideEntry
	for _, path := range paths {
		t, d, err := readPeptides(path, modDB)
		if err != nil {
			return nil, nil, err
		}
		targets = append(targets, t...)
		decoys = append(decoys, d...)
	}

	pairing := createPairing(targets, decoys)
	logger.Debug("Paired target and decoy peptides", zap.Int("peptides", pairing.Len()))
	return ds, pairing, nil
}

// peptideEntry holds the columns used to pair a target with its decoy.
type peptideEntry struct {
	sequence string
	mass     float64
	original string // Unmodified original target sequence; decoys only
}

func readPeptides(path string, modDB *core.ModDatabase) (targets, decoys []peptideEntry, err error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()

	cr := newCSVReader(fh)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	targetIdx, seqIdx, massIdx, origIdx := -1, -1, -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case TargetColumn:
			targetIdx = i
		case PeptideColumn:
			seqIdx = i
		case MassColumn:
			massIdx = i
		case OriginalColumn:
			origIdx = i
		}
	}
	if targetIdx < 0 || seqIdx < 0 {
		return nil, nil, fmt.Errorf("%s: %w: %s, %s", path, txt.ErrMissingColumn, TargetColumn, PeptideColumn)
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		line, _ := cr.FieldPos(0)

		target, err := core.ParseTarget(record[targetIdx])
		if err != nil {
			return nil, nil, fmt.Errorf("%s: line %d: %w", path, line, err)
		}
		entry := peptideEntry{sequence: strings.TrimSpace(record[seqIdx])}

		if massIdx >= 0 {
			entry.mass, err = strconv.ParseFloat(strings.TrimSpace(record[massIdx]), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: line %d: invalid peptide mass '%s': %w", path, line, record[massIdx], err)
			}
		} else {
			entry.mass, err = modDB.PeptideMass(entry.sequence)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: line %d: %w", path, line, err)
			}
		}
		entry.mass = core.RoundFloat(entry.mass, massPrecision)

		if target {
			targets = append(targets, entry)
			continue
		}
		if origIdx < 0 {
			continue
		}
		entry.original = core.StripModifications(strings.TrimSpace(record[origIdx]))
		decoys = append(decoys, entry)
	}
	return targets, decoys, nil
}

// createPairing pairs each target peptide with the first unused decoy that
// was generated from it and has the same mass and modification state.
func createPairing(targets, decoys []peptideEntry) *core.PeptidePairing {
	targets = dedupe(targets)
	decoys = dedupe(decoys)

	candidates := make(map[string][]int)
	for i, d := range decoys {
		candidates[d.original] = append(candidates[d.original], i)
	}
	used := make([]bool, len(decoys))

	pairing := core.NewPeptidePairing(nil)
	for _, t := range targets {
		if _, ok := pairing.Partner(t.sequence); ok {
			continue
		}
		for _, i := range candidates[core.StripModifications(t.sequence)] {
			if used[i] || !isMatch(t, decoys[i]) {
				continue
			}
			pairing.Add(t.sequence, decoys[i].sequence)
			used[i] = true
			break
		}
	}
	return pairing
}

// dedupe keeps the first entry of each (mass, sequence).
func dedupe(entries []peptideEntry) []peptideEntry {
	type key struct {
		mass     float64
		sequence string
	}
	seen := make(map[key]bool, len(entries))
	out := make([]peptideEntry, 0, len(entries))
	for _, e := range entries {
		k := key{e.mass, e.sequence}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// isMatch reports whether a decoy is a valid partner: identical mass, and
// either both unmodified or both modified after the same residue.
func isMatch(target, decoy peptideEntry) bool {
	if target.mass != decoy.mass {
		return false
	}
	tRes, tMod := modifiedResidue(target.sequence)
	dRes, dMod := modifiedResidue(decoy.sequence)
	if tMod != dMod {
		return false
	}
	return !tMod || tRes == dRes
}

// modifiedResidue returns the residue preceding the first modification.
func modifiedResidue(sequence string) (string, bool) {
	i := strings.IndexAny(sequence, "[(")
	if i < 0 {
		return "", false
	}
	if i == 0 {
		return "", true
	}
	return sequence[i-1 : i], true
}

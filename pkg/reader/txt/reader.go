// Package txt provides streaming readers for delimited PSM tables
package txt

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
)

var (
	ErrMissingColumn  = errors.New("missing column")
	ErrTooManyLabels  = errors.New("the target column appears to contain more than 2 values")
	ErrInvalidPairing = errors.New("invalid pairing file")
)

// Reader provides streaming access to a delimited PSM table. The first
// record is the header.
type Reader struct {
	csv     *csv.Reader
	schema  core.Schema
	cols    columns
	lineNum int
	current *core.PSM
	labels  map[string]struct{} // distinct numeric target labels
	err     error
}

// columns holds header positions of the schema columns; -1 when absent.
type columns struct {
	target   int
	spectrum []int
	scores   []int
	peptide  int
	protein  int
}

// NewReader creates a new reader and consumes the header line.
// A zero sep means tab.
func NewReader(r io.Reader, schema core.Schema, sep rune) (*Reader, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if sep == 0 {
		sep = '\t'
	}

	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty file: %w", ErrMissingColumn)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols, err := locate(header, schema)
	if err != nil {
		return nil, err
	}

	return &Reader{
		csv:     cr,
		schema:  schema,
		cols:    cols,
		lineNum: 1,
		labels:  make(map[string]struct{}),
	}, nil
}

func locate(header []string, s core.Schema) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, ok := index[h]; !ok {
			index[h] = i
		}
	}

	var missing []string
	find := func(name string) int {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	c := columns{
		target:  find(s.TargetColumn),
		peptide: find(s.PeptideColumn),
		protein: -1,
	}
	for _, col := range s.SpectrumColumns {
		c.spectrum = append(c.spectrum, find(col))
	}
	for _, col := range s.ScoreColumns {
		c.scores = append(c.scores, find(col))
	}
	if s.ProteinColumn != "" {
		c.protein = find(s.ProteinColumn)
	}

	if len(missing) > 0 {
		return c, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return c, nil
}

// Next advances to the next PSM. Returns false when no more PSMs or error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}

	psm, err := r.readPSM()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.current = psm
	return true
}

// PSM returns the current PSM
func (r *Reader) PSM() *core.PSM {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) readPSM() (*core.PSM, error) {
	record, err := r.csv.Read()
	if err != nil {
		return nil, err
	}
	r.lineNum, _ = r.csv.FieldPos(0)

	psm, err := r.parse(record)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
	}
	return psm, nil
}

func (r *Reader) parse(record []string) (*core.PSM, error) {
	label := strings.TrimSpace(record[r.cols.target])
	target, err := core.ParseTarget(label)
	if err != nil {
		return nil, err
	}
	if _, err := strconv.ParseFloat(label, 64); err == nil {
		r.labels[label] = struct{}{}
		if len(r.labels) > 2 {
			return nil, ErrTooManyLabels
		}
	}

	psm := &core.PSM{
		Spectrum: make([]string, len(r.cols.spectrum)),
		Scores:   make([]float64, len(r.cols.scores)),
		Target:   target,
		Peptide:  strings.TrimSpace(record[r.cols.peptide]),
	}
	for i, idx := range r.cols.spectrum {
		psm.Spectrum[i] = strings.TrimSpace(record[idx])
	}
	for i, idx := range r.cols.scores {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value '%s': %w", r.schema.ScoreColumns[i], record[idx], err)
		}
		psm.Scores[i] = v
	}
	if r.cols.protein >= 0 {
		psm.Proteins = strings.TrimSpace(record[r.cols.protein])
	}
	return psm, nil
}

// ReadFile reads every PSM of a plain or gzip-compressed file.
func ReadFile(path string, schema core.Schema, sep rune) ([]core.PSM, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()

	reader, err := NewReader(fh, schema, sep)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var psms []core.PSM
	for reader.Next() {
		psms = append(psms, *reader.PSM())
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return psms, nil
}

// ReadDataset reads and concatenates one or more PSM files into a dataset.
func ReadDataset(paths []string, schema core.Schema, sep rune, logger *zap.Logger) (*core.Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var psms []core.PSM
	for _, path := range paths {
		logger.Info("Reading PSMs", zap.String("file", path))
		filePSMs, err := ReadFile(path, schema, sep)
		if err != nil {
			return nil, err
		}
		psms = append(psms, filePSMs...)
	}
	return core.NewDataset(psms, schema)
}

// ReadPairing reads a delimited file with "target" and "decoy" columns
// that pairs target peptides with their decoys.
func ReadPairing(path string, sep rune) (*core.PeptidePairing, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()

	pairing, err := readPairing(fh, sep)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pairing, nil
}

func readPairing(r io.Reader, sep rune) (*core.PeptidePairing, error) {
	if sep == 0 {
		sep = '\t'
	}
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrInvalidPairing, err)
	}
	targetIdx, decoyIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "target":
			targetIdx = i
		case "decoy":
			decoyIdx = i
		}
	}
	if targetIdx < 0 || decoyIdx < 0 {
		return nil, fmt.Errorf("%w: 'target' and 'decoy' columns are required", ErrInvalidPairing)
	}

	pairing := core.NewPeptidePairing(nil)
	lineNum := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if targetIdx >= len(record) || decoyIdx >= len(record) {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrInvalidPairing, lineNum, len(record))
		}
		pairing.Add(strings.TrimSpace(record[targetIdx]), strings.TrimSpace(record[decoyIdx]))
	}
	return pairing, nil
}

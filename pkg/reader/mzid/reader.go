// Package mzid reads PSMs from mzIdentML files written by MS-GF+ and MS Amanda
package mzid

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shenwei356/xopen"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/crema/pkg/core"
)

// Column names of the PSMs built from mzIdentML.
const (
	TargetColumn  = "isDecoy"
	PeptideColumn = "peptide"
	ProteinColumn = "protein"
	ProteinDelim  = ";"
)

// SpectrumColumns together identify a spectrum.
var SpectrumColumns = []string{"spectrumID", "calculatedMassToCharge"}

var (
	ErrUnsupportedEngine = errors.New("unsupported database search engine generated the mzIdentML file")
	ErrMissingScore      = errors.New("missing score")
	ErrScoreMismatch     = errors.New("mzIdentML files report different scores")
	ErrUnknownPeptide    = errors.New("unknown peptide reference")
)

const (
	msgfPrefix  = "MS-GF:"
	msgfMarker  = "MS-GF:SpecEValue"
	amandaScore = "Amanda:AmandaScore"
)

// Schema returns the schema of PSMs that carry the given scores.
func Schema(scoreColumns []string) core.Schema {
	return core.Schema{
		TargetColumn:    TargetColumn,
		SpectrumColumns: append([]string(nil), SpectrumColumns...),
		ScoreColumns:    append([]string(nil), scoreColumns...),
		PeptideColumn:   PeptideColumn,
		ProteinColumn:   ProteinColumn,
		ProteinDelim:    ProteinDelim,
	}
}

// Read decodes an mzIdentML document and returns its PSMs together with
// the names of the score columns they carry.
func Read(reader io.Reader) ([]core.PSM, []string, error) {
	var content mzIdentMLContent
	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	if err := d.Decode(&content); err != nil {
		return nil, nil, err
	}

	idx := newIndex(&content)
	scoreColumns, err := detectScores(&content)
	if err != nil {
		return nil, nil, err
	}

	var psms []core.PSM
	for _, result := range content.SpectrumIdentificationResult {
		for _, item := range result.SpectrumIdentificationItem {
			psm, err := idx.psm(result.SpectrumID, item, scoreColumns)
			if err != nil {
				return nil, nil, fmt.Errorf("identification %s: %w", item.ID, err)
			}
			psms = append(psms, psm)
		}
	}
	return psms, scoreColumns, nil
}

// ReadDataset reads and concatenates mzIdentML files. Every file must
// report the same scores.
func ReadDataset(paths []string, logger *zap.Logger) (*core.Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var psms []core.PSM
	var scoreColumns []string
	for i, path := range paths {
		logger.Info("Reading PSMs", zap.String("file", path))
		filePSMs, cols, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			scoreColumns = cols
		} else if strings.Join(cols, "\x1f") != strings.Join(scoreColumns, "\x1f") {
			return nil, fmt.Errorf("%s: %w: %v vs %v", path, ErrScoreMismatch, cols, scoreColumns)
		}
		psms = append(psms, filePSMs...)
	}
	return core.NewDataset(psms, Schema(scoreColumns))
}

func readFile(path string) ([]core.PSM, []string, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()

	psms, cols, err := Read(fh)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return psms, cols, nil
}

// detectScores determines the search engine from the reported score names.
// MS-GF+ scores are every MS-GF term except q-values; MS Amanda reports a
// single score.
func detectScores(content *mzIdentMLContent) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for _, result := range content.SpectrumIdentificationResult {
		for _, item := range result.SpectrumIdentificationItem {
			for _, p := range item.params() {
				if !seen[p.Name] {
					seen[p.Name] = true
					names = append(names, p.Name)
				}
			}
		}
	}

	switch {
	case seen[msgfMarker]:
		var scores []string
		for _, name := range names {
			if strings.HasPrefix(name, msgfPrefix) && !strings.Contains(name, "QValue") {
				scores = append(scores, name)
			}
		}
		return scores, nil
	case seen[amandaScore]:
		return []string{amandaScore}, nil
	}
	return nil, ErrUnsupportedEngine
}

func (item *spectrumIdentificationItem) params() []param {
	return append(append([]param(nil), item.CvPar...), item.UserPar...)
}

// index resolves the references between mzIdentML elements.
type index struct {
	peptides   map[string]*peptide
	evidence   map[string]*peptideEvidence
	byPeptide  map[string][]*peptideEvidence
	accessions map[string]string
}

func newIndex(content *mzIdentMLContent) *index {
	idx := &index{
		peptides:   make(map[string]*peptide, len(content.Peptide)),
		evidence:   make(map[string]*peptideEvidence, len(content.PeptideEvidence)),
		byPeptide:  make(map[string][]*peptideEvidence),
		accessions: make(map[string]string, len(content.DBSequence)),
	}
	for i := range content.Peptide {
		idx.peptides[content.Peptide[i].ID] = &content.Peptide[i]
	}
	for i := range content.PeptideEvidence {
		ev := &content.PeptideEvidence[i]
		idx.evidence[ev.ID] = ev
		idx.byPeptide[ev.PeptideRef] = append(idx.byPeptide[ev.PeptideRef], ev)
	}
	for _, db := range content.DBSequence {
		idx.accessions[db.ID] = db.Accession
	}
	return idx
}

func (idx *index) psm(spectrumID string, item spectrumIdentificationItem, scoreColumns []string) (core.PSM, error) {
	pep, ok := idx.peptides[item.PeptideRef]
	if !ok {
		return core.PSM{}, fmt.Errorf("%w: %s", ErrUnknownPeptide, item.PeptideRef)
	}

	values := make(map[string]string)
	for _, p := range item.params() {
		values[p.Name] = p.Value
	}
	scores := make([]float64, len(scoreColumns))
	for i, col := range scoreColumns {
		v, ok := values[col]
		if !ok {
			return core.PSM{}, fmt.Errorf("%w: %s", ErrMissingScore, col)
		}
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return core.PSM{}, fmt.Errorf("invalid %s value '%s': %w", col, v, err)
		}
		scores[i] = score
	}

	evidence := idx.evidenceFor(item)
	target := len(evidence) == 0
	var proteins []string
	seen := make(map[string]bool)
	for _, ev := range evidence {
		if !ev.IsDecoy {
			target = true
		}
		acc := idx.accessions[ev.DBSequenceRef]
		if acc == "" {
			acc = ev.DBSequenceRef
		}
		if acc != "" && !seen[acc] {
			seen[acc] = true
			proteins = append(proteins, acc)
		}
	}

	return core.PSM{
		Spectrum: []string{spectrumID, item.CalculatedMassToCharge},
		Scores:   scores,
		Target:   target,
		Peptide:  pep.modified(),
		Proteins: strings.Join(proteins, ProteinDelim),
	}, nil
}

// evidenceFor returns the peptide evidence referenced by an identification,
// falling back to every evidence of its peptide.
func (idx *index) evidenceFor(item spectrumIdentificationItem) []*peptideEvidence {
	var evidence []*peptideEvidence
	for _, ref := range item.PeptideEvidenceRef {
		if ev, ok := idx.evidence[ref.PeptideEvidenceRef]; ok {
			evidence = append(evidence, ev)
		}
	}
	if len(evidence) == 0 {
		evidence = idx.byPeptide[item.PeptideRef]
	}
	return evidence
}

// modified writes the peptide sequence with inline mass modifications.
func (p *peptide) modified() string {
	n := len(p.PeptideSequence)
	mods := make([]core.Modification, 0, len(p.Modification))
	for _, m := range p.Modification {
		pos := m.Location - 1
		if pos >= n {
			pos = n - 1
		}
		mods = append(mods, core.Modification{Mass: m.MonoisotopicMassDelta, Position: pos})
	}
	return core.FormatPeptide(p.PeptideSequence, mods)
}

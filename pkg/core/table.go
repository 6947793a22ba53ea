package core

import (
	"strconv"
)

// Headers of the columns added by confidence estimation.
const (
	QValueColumn       = "crema q-value"
	AcceptColumn       = "accept"
	ProteinGroupColumn = "protein group"
)

// Row is a single entry of a confidence table.
type Row struct {
	Spectrum []string
	Peptide  string
	Protein  string // Protein or protein group
	Target   bool
	Score    float64
	QValue   float64
	Accept   bool
}

// SpectrumKey joins the spectrum values into a single grouping key.
func (r *Row) SpectrumKey() string {
	return joinKey(r.Spectrum)
}

// Layout describes which columns of a Row are presented, and their headers.
type Layout struct {
	SpectrumColumns []string // Empty for protein levels
	PeptideColumn   string   // Empty when not presented
	ProteinColumn   string   // Empty when not presented
	ScoreColumn     string
	Accept          bool // Present the accept column
}

// Header returns the column names in presentation order.
func (l Layout) Header() []string {
	cols := append([]string(nil), l.SpectrumColumns...)
	if l.PeptideColumn != "" {
		cols = append(cols, l.PeptideColumn)
	}
	if l.ProteinColumn != "" {
		cols = append(cols, l.ProteinColumn)
	}
	cols = append(cols, l.ScoreColumn, QValueColumn)
	if l.Accept {
		cols = append(cols, AcceptColumn)
	}
	return cols
}

// Record formats a row in presentation order.
func (l Layout) Record(r Row) []string {
	rec := make([]string, 0, len(l.SpectrumColumns)+5)
	for i := range l.SpectrumColumns {
		v := ""
		if i < len(r.Spectrum) {
			v = r.Spectrum[i]
		}
		rec = append(rec, v)
	}
	if l.PeptideColumn != "" {
		rec = append(rec, r.Peptide)
	}
	if l.ProteinColumn != "" {
		rec = append(rec, r.Protein)
	}
	rec = append(rec,
		strconv.FormatFloat(r.Score, 'g', -1, 64),
		strconv.FormatFloat(r.QValue, 'g', -1, 64),
	)
	if l.Accept {
		rec = append(rec, strconv.FormatBool(r.Accept))
	}
	return rec
}

// Table is the confidence estimates of one level, best score first.
type Table struct {
	Level  string
	Layout Layout
	Rows   []Row
}

// CountAccepted returns the number of rows with a q-value at or below fdr.
func (t *Table) CountAccepted(fdr float64) int {
	if t == nil {
		return 0
	}
	n := 0
	for _, r := range t.Rows {
		if r.QValue <= fdr {
			n++
		}
	}
	return n
}

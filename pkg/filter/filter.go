// Package filter provides row filters applied between confidence levels
package filter

import (
	"strings"

	"github.com/ChrisMcGann/crema/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	QValueCutoff float64 // Keep only rows with a q-value at or below this (0 = no cutoff)
	ProteinDelim string  // Drop rows whose protein field lists more than one protein ("" = keep all)
	TargetsOnly  bool    // Drop decoy rows
}

// Apply applies all configured filters and returns the surviving rows in
// their original order. The input slice is not modified.
func (c *Config) Apply(rows []core.Row) []core.Row {
	filtered := make([]core.Row, 0, len(rows))
	for _, row := range rows {
		if c.keep(row) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

func (c *Config) keep(row core.Row) bool {
	if c.TargetsOnly && !row.Target {
		return false
	}
	if c.QValueCutoff > 0 && row.QValue > c.QValueCutoff {
		return false
	}
	if c.ProteinDelim != "" && isShared(row.Protein, c.ProteinDelim) {
		return false
	}
	return true
}

// isShared reports whether a protein field maps a peptide to several proteins.
func isShared(proteins, delim string) bool {
	return strings.Contains(proteins, delim)
}

// SplitProteins splits a protein field into its distinct proteins, keeping
// first-appearance order and dropping empty entries.
func SplitProteins(proteins, delim string) []string {
	parts := strings.Split(proteins, delim)
	seen := make(map[string]bool, len(parts))
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

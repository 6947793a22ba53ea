package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based residue position; -1 for N-term
	Name     string // Modification name or the raw bracket contents
}

// ModDatabase stores modification definitions
type ModDatabase struct {
	mods map[string]float64 // name -> mass shift
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[string]float64),
	}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift,aa)
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		modName := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}

		db.mods[modName] = mass
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
}

// ParsePeptide splits a peptide with inline modifications into its bare
// sequence and modification list. Modifications follow the residue they
// modify in square brackets or parentheses, e.g. "PEPM[15.9949]K",
// "PEPM(Oxidation)K" or "[42.0106]PEPTIDE" for the N-terminus. Bracket
// contents are either a mass shift or a name known to the database.
func (db *ModDatabase) ParsePeptide(peptide string) (string, []Modification, error) {
	var seq strings.Builder
	var mods []Modification

	for i := 0; i < len(peptide); i++ {
		c := peptide[i]
		if c != '[' && c != '(' {
			seq.WriteByte(c)
			continue
		}

		closing := byte(']')
		if c == '(' {
			closing = ')'
		}
		end := strings.IndexByte(peptide[i+1:], closing)
		if end < 0 {
			return "", nil, fmt.Errorf("unterminated modification in peptide '%s'", peptide)
		}
		content := peptide[i+1 : i+1+end]

		mass, err := strconv.ParseFloat(strings.TrimPrefix(content, "+"), 64)
		if err != nil {
			var ok bool
			mass, ok = db.GetMass(content)
			if !ok {
				return "", nil, fmt.Errorf("unknown modification '%s' in peptide '%s'", content, peptide)
			}
		}

		mods = append(mods, Modification{
			Mass:     mass,
			Position: seq.Len() - 1,
			Name:     content,
		})
		i += end + 1
	}

	return seq.String(), mods, nil
}

// StripModifications removes inline modifications from a peptide.
func StripModifications(peptide string) string {
	var seq strings.Builder
	depth := 0
	for _, c := range peptide {
		switch {
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			seq.WriteRune(c)
		}
	}
	return seq.String()
}

// FormatPeptide writes a sequence with its modifications inline, using the
// mass shift in square brackets.
func FormatPeptide(sequence string, mods []Modification) string {
	byPos := make(map[int][]Modification)
	for _, mod := range mods {
		byPos[mod.Position] = append(byPos[mod.Position], mod)
	}

	var b strings.Builder
	writeMods := func(pos int) {
		for _, mod := range byPos[pos] {
			fmt.Fprintf(&b, "[%s]", strconv.FormatFloat(RoundFloat(mod.Mass, 4), 'f', -1, 64))
		}
	}

	writeMods(-1)
	for i := 0; i < len(sequence); i++ {
		b.WriteByte(sequence[i])
		writeMods(i)
	}
	return b.String()
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	// Common modifications from unimod
	db.Add("Acetyl", 42.010565)
	db.Add("Amidated", -0.984016)
	db.Add("Biotin", 226.077598)
	db.Add("Carbamidomethyl", 57.021464)
	db.Add("Carbamyl", 43.005814)
	db.Add("Carboxymethyl", 58.005479)
	db.Add("Deamidated", 0.984016)
	db.Add("Met->Hse", -29.992806)
	db.Add("Met->Hsl", -48.003371)
	db.Add("NIPCAM", 99.068414)
	db.Add("Phospho", 79.966331)
	db.Add("Dehydrated", -18.010565)
	db.Add("Propionamide", 71.037114)
	db.Add("Pyro-carbamidomethyl", 39.994915)
	db.Add("Glu->pyro-Glu", -18.010565)
	db.Add("Gln->pyro-Glu", -17.026549)
	db.Add("Cation:Na", 21.981943)
	db.Add("Methyl", 14.01565)
	db.Add("Oxidation", 15.994915)
	db.Add("Dimethyl", 28.0313)
	db.Add("Trimethyl", 42.04695)
	db.Add("Methylthio", 45.987721)
	db.Add("Sulfo", 79.956815)
	db.Add("Hex", 162.052824)
	db.Add("Lipoyl", 188.032956)
	db.Add("HexNAc", 203.079373)
	db.Add("Farnesyl", 204.187801)
	db.Add("Myristoyl", 210.198366)
	db.Add("PyridoxalPhosphate", 229.014009)
	db.Add("Palmitoyl", 238.229666)
	db.Add("GeranylGeranyl", 272.250401)
	db.Add("Phosphopantetheine", 340.085794)
	db.Add("FAD", 783.141486)
	db.Add("Guanidinyl", 42.021798)
	db.Add("HNE", 156.11503)
	db.Add("Glucuronyl", 176.032088)
	db.Add("Glutathione", 305.068156)
	db.Add("Propionyl", 56.026215)
	db.Add("TMT", 229.162932)
	db.Add("TMTPro", 304.207146)
	db.Add("TMT6plex", 229.162932)
	db.Add("TMT10plex", 229.162932)
	db.Add("TMT11plex", 229.162932)
	db.Add("TMT16plex", 304.207146)
	db.Add("iTRAQ4plex", 144.102063)
	db.Add("iTRAQ8plex", 304.205360)

	return db
}

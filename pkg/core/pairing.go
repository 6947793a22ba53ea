package core

// PeptidePairing links target peptides with their shuffled decoy analogs.
type PeptidePairing struct {
	partner map[string]string
}

// NewPeptidePairing builds a pairing from peptide -> paired peptide entries.
// Pairs may be listed in one or both directions.
func NewPeptidePairing(pairs map[string]string) *PeptidePairing {
	p := &PeptidePairing{partner: make(map[string]string, 2*len(pairs))}
	for a, b := range pairs {
		p.Add(a, b)
	}
	return p
}

// Add records that a and b are paired.
func (p *PeptidePairing) Add(a, b string) {
	if a == "" || b == "" || a == b {
		return
	}
	p.partner[a] = b
	if _, ok := p.partner[b]; !ok {
		p.partner[b] = a
	}
}

// Partner returns the peptide paired with peptide.
func (p *PeptidePairing) Partner(peptide string) (string, bool) {
	if p == nil {
		return "", false
	}
	other, ok := p.partner[peptide]
	return other, ok
}

// Key returns the competition key of a peptide: a peptide and its partner
// share the same key. Unpaired peptides are their own key.
func (p *PeptidePairing) Key(peptide string) string {
	other, ok := p.Partner(peptide)
	if !ok || peptide < other {
		return peptide
	}
	return other
}

// Len returns the number of peptides that have a partner.
func (p *PeptidePairing) Len() int {
	if p == nil {
		return 0
	}
	return len(p.partner)
}

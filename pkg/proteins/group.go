// Package proteins groups proteins that cannot be distinguished by their
// detected peptides.
package proteins

import (
	"errors"
	"fmt"
	"sort"

	"github.com/maruel/natural"

	"github.com/ChrisMcGann/crema/pkg/filter"
)

// ErrPeptideInBoth is returned when a peptide is listed as both a target and a decoy.
var ErrPeptideInBoth = errors.New("peptide found in both target and decoy peptides")

// GroupDelim joins protein identifiers into a group key.
const GroupDelim = ","

// Set is an unordered collection of identifiers.
type Set map[string]struct{}

// NewSet returns a set holding items.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Has reports whether item is in the set.
func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted returns the items in natural order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return natural.Less(out[i], out[j]) })
	return out
}

// Peptide is a detected peptide and the protein field of its row.
type Peptide struct {
	Sequence string
	Proteins string
}

// Grouping maps protein groups to their peptides and peptides to the
// groups they belong to.
type Grouping struct {
	Groups   map[string]Set
	Peptides map[string]Set
}

// Group merges proteins whose peptides are all explained by another
// protein. Proteins are visited from the largest peptide set to the
// smallest, ties in order of first appearance.
func Group(targets, decoys []Peptide, delim string) (*Grouping, error) {
	pepToProt := make(map[string]Set)
	protToPep := make(map[string]Set)
	var order []string

	add := func(p Peptide) {
		prots := filter.SplitProteins(p.Proteins, delim)
		pepToProt[p.Sequence] = NewSet(prots...)
		for _, prot := range prots {
			peps, ok := protToPep[prot]
			if !ok {
				peps = make(Set)
				protToPep[prot] = peps
				order = append(order, prot)
			}
			peps[p.Sequence] = struct{}{}
		}
	}

	for _, p := range targets {
		add(p)
	}
	isTarget := make(map[string]bool, len(targets))
	for _, p := range targets {
		isTarget[p.Sequence] = true
	}
	for _, p := range decoys {
		if isTarget[p.Sequence] {
			return nil, fmt.Errorf("%w: %s", ErrPeptideInBoth, p.Sequence)
		}
		add(p)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return len(protToPep[order[i]]) > len(protToPep[order[j]])
	})

	grouped := make(map[string]Set)
	for _, prot := range order {
		peps := protToPep[prot]
		if len(grouped) == 0 {
			grouped[prot] = copySet(peps)
			continue
		}

		matches := explaining(peps, pepToProt, grouped)
		if len(matches) == 0 {
			grouped[prot] = copySet(peps)
			continue
		}

		for _, match := range matches {
			merged := match + GroupDelim + prot
			members := grouped[match]
			delete(grouped, match)
			for pep := range peps {
				members[pep] = struct{}{}
			}
			grouped[merged] = members

			for pep := range members {
				owners := pepToProt[pep]
				delete(owners, match)
				delete(owners, prot)
				owners[merged] = struct{}{}
			}
		}
	}

	return &Grouping{Groups: grouped, Peptides: pepToProt}, nil
}

// explaining returns the existing groups that every peptide in peps
// references, in natural order.
func explaining(peps Set, pepToProt map[string]Set, grouped map[string]Set) []string {
	var common Set
	for pep := range peps {
		owners := pepToProt[pep]
		if common == nil {
			common = copySet(owners)
			continue
		}
		for key := range common {
			if !owners.Has(key) {
				delete(common, key)
			}
		}
	}

	var matches []string
	for _, key := range common.Sorted() {
		if _, ok := grouped[key]; ok {
			matches = append(matches, key)
		}
	}
	return matches
}

// Representative returns the group a peptide is labelled with: the
// naturally smallest of its groups.
func (g *Grouping) Representative(peptide string) (string, bool) {
	owners, ok := g.Peptides[peptide]
	if !ok || len(owners) == 0 {
		return "", false
	}
	return owners.Sorted()[0], true
}

// Shared returns the peptides that belong to more than one group.
func (g *Grouping) Shared() []string {
	var out []string
	for pep, owners := range g.Peptides {
		if len(owners) > 1 {
			out = append(out, pep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return natural.Less(out[i], out[j]) })
	return out
}

func copySet(s Set) Set {
	out := make(Set, len(s))
	for item := range s {
		out[item] = struct{}{}
	}
	return out
}

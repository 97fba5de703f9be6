// Package molecule implements the chemistry collaborators used by the scoring
// functions: a SMILES parser producing an atom/bond graph, circular (Morgan)
// fingerprints in sparse and folded form, and Tversky/Tanimoto similarity.
//
// It is not a general cheminformatics toolkit. It covers the SMILES grammar
// needed by the scorers together with the valence and aromaticity checks that
// separate valid from invalid identifiers.
package molecule

import "fmt"

// BondOrder is the multiplicity of a bond.
type BondOrder uint8

const (
	BondSingle BondOrder = iota + 1
	BondDouble
	BondTriple
	BondQuadruple
	BondAromatic
)

// String returns the SMILES symbol for the bond order.
func (o BondOrder) String() string {
	switch o {
	case BondSingle:
		return "-"
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	case BondQuadruple:
		return "$"
	case BondAromatic:
		return ":"
	default:
		return fmt.Sprintf("BondOrder(%d)", uint8(o))
	}
}

// valence returns the integral valence contribution of the bond. Aromatic
// bonds count as one; the delocalised contribution is added per atom.
func (o BondOrder) valence() int {
	switch o {
	case BondDouble:
		return 2
	case BondTriple:
		return 3
	case BondQuadruple:
		return 4
	default:
		return 1
	}
}

// Atom is a single atom of a parsed molecule.
type Atom struct {
	AtomicNumber int
	Symbol       string
	Charge       int
	Isotope      int
	Aromatic     bool
	// ExplicitHs is the hydrogen count written in a bracket atom.
	ExplicitHs int
	// ImplicitHs is derived from the default valence for organic-subset atoms.
	ImplicitHs int
	InRing     bool

	bracket bool
}

// TotalHs returns the number of attached hydrogens.
func (a *Atom) TotalHs() int { return a.ExplicitHs + a.ImplicitHs }

// Bond connects two atoms by index.
type Bond struct {
	Begin  int
	End    int
	Order  BondOrder
	InRing bool

	implicit bool
}

// Other returns the atom index at the opposite end from idx.
func (b *Bond) Other(idx int) int {
	if b.Begin == idx {
		return b.End
	}
	return b.Begin
}

// Molecule is the handle produced by a successful parse. It is owned by the
// scoring call that created it and is not mutated after parsing.
type Molecule struct {
	Atoms []Atom
	Bonds []Bond

	// adjacency[i] lists bond indices incident to atom i.
	adjacency [][]int
}

// NumAtoms returns the number of heavy (explicitly written) atoms.
func (m *Molecule) NumAtoms() int { return len(m.Atoms) }

// NumBonds returns the number of bonds.
func (m *Molecule) NumBonds() int { return len(m.Bonds) }

// IsEmpty reports whether the molecule has no atoms.
func (m *Molecule) IsEmpty() bool { return len(m.Atoms) == 0 }

// BondsOf returns the indices of the bonds incident to atom idx.
func (m *Molecule) BondsOf(idx int) []int { return m.adjacency[idx] }

// Degree returns the number of explicit neighbours of atom idx.
func (m *Molecule) Degree(idx int) int { return len(m.adjacency[idx]) }

// HasElement reports whether any atom has atomic number z.
func (m *Molecule) HasElement(z int) bool {
	for i := range m.Atoms {
		if m.Atoms[i].AtomicNumber == z {
			return true
		}
	}
	return false
}

// CountElement returns how many atoms have atomic number z.
func (m *Molecule) CountElement(z int) int {
	n := 0
	for i := range m.Atoms {
		if m.Atoms[i].AtomicNumber == z {
			n++
		}
	}
	return n
}

// bondBetween returns the index of the bond joining a and b, or -1.
func (m *Molecule) bondBetween(a, b int) int {
	for _, bi := range m.adjacency[a] {
		if m.Bonds[bi].Other(a) == b {
			return bi
		}
	}
	return -1
}

func (m *Molecule) addAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	m.adjacency = append(m.adjacency, nil)
	return len(m.Atoms) - 1
}

func (m *Molecule) addBond(a, b int, order BondOrder, implicit bool) int {
	m.Bonds = append(m.Bonds, Bond{Begin: a, End: b, Order: order, implicit: implicit})
	idx := len(m.Bonds) - 1
	m.adjacency[a] = append(m.adjacency[a], idx)
	m.adjacency[b] = append(m.adjacency[b], idx)
	return idx
}

// perceiveRings marks every bond that is not a bridge as a ring bond and
// every atom with at least one ring bond as a ring atom.
func (m *Molecule) perceiveRings() {
	n := len(m.Atoms)
	if n == 0 {
		return
	}
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	bridge := make([]bool, len(m.Bonds))
	timer := 0

	var visit func(u, parentBond int)
	visit = func(u, parentBond int) {
		disc[u] = timer
		low[u] = timer
		timer++
		for _, bi := range m.adjacency[u] {
			if bi == parentBond {
				continue
			}
			v := m.Bonds[bi].Other(u)
			if disc[v] == -1 {
				visit(v, bi)
				if low[v] < low[u] {
					low[u] = low[v]
				}
				if low[v] > disc[u] {
					bridge[bi] = true
				}
			} else if disc[v] < low[u] {
				low[u] = disc[v]
			}
		}
	}
	for i := 0; i < n; i++ {
		if disc[i] == -1 {
			visit(i, -1)
		}
	}

	for bi := range m.Bonds {
		if bridge[bi] {
			continue
		}
		b := &m.Bonds[bi]
		b.InRing = true
		m.Atoms[b.Begin].InRing = true
		m.Atoms[b.End].InRing = true
	}
}

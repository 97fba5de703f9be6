package molecule

import "fmt"

// kekuleSearchBudget bounds the matching search per aromatic system. Systems
// that exhaust it are accepted unchecked.
const kekuleSearchBudget = 1 << 16

// bondedValence returns the valence used by bonds and written hydrogens, and
// whether the atom already carries a double or triple bond.
func (m *Molecule) bondedValence(idx int) (int, bool) {
	used := m.Atoms[idx].ExplicitHs
	hasDouble := false
	for _, bi := range m.adjacency[idx] {
		o := m.Bonds[bi].Order
		used += o.valence()
		if o == BondDouble || o == BondTriple {
			hasDouble = true
		}
	}
	return used, hasDouble
}

// needsPiBond reports whether an aromatic atom must take a double bond in a
// Kekulé form of its ring system.
func (m *Molecule) needsPiBond(idx int) bool {
	a := &m.Atoms[idx]
	if a.AtomicNumber == 0 || !piEligible(a) {
		return false
	}
	used, hasDouble := m.bondedValence(idx)
	if hasDouble {
		return false
	}
	valences, checked := isoelectronicValences(a.AtomicNumber, a.Charge)
	if !checked {
		return false
	}
	return used+1 <= valences[len(valences)-1]
}

// kekulize checks that every aromatic atom needing a double bond can be
// paired with a neighbour along an aromatic bond. c1cccc1 and n1cccc1 fail.
func (m *Molecule) kekulize() error {
	need := make([]bool, len(m.Atoms))
	found := false
	for ai := range m.Atoms {
		if m.Atoms[ai].Aromatic && m.needsPiBond(ai) {
			need[ai] = true
			found = true
		}
	}
	if !found {
		return nil
	}

	match := make([]int, len(m.Atoms))
	for i := range match {
		match[i] = -1
	}
	seen := make([]bool, len(m.Atoms))
	for ai := range m.Atoms {
		if !need[ai] || seen[ai] {
			continue
		}
		system := m.piSystem(ai, need, seen)
		if len(system)%2 != 0 {
			return fmt.Errorf("cannot kekulize aromatic system at atom %d", system[0])
		}
		k := kekuleSearch{mol: m, need: need, match: match, budget: kekuleSearchBudget}
		if !k.solve(system, 0) && !k.exhausted {
			return fmt.Errorf("cannot kekulize aromatic system at atom %d", system[0])
		}
	}
	return nil
}

// piSystem collects the atoms needing a double bond that are connected to
// start through aromatic bonds between such atoms.
func (m *Molecule) piSystem(start int, need, seen []bool) []int {
	system := []int{start}
	seen[start] = true
	for i := 0; i < len(system); i++ {
		ai := system[i]
		for _, bi := range m.adjacency[ai] {
			b := &m.Bonds[bi]
			o := b.Other(ai)
			if b.Order != BondAromatic || !need[o] || seen[o] {
				continue
			}
			seen[o] = true
			system = append(system, o)
		}
	}
	return system
}

type kekuleSearch struct {
	mol       *Molecule
	need      []bool
	match     []int
	budget    int
	exhausted bool
}

// solve pairs the first unmatched atom of system at or after pos with each
// free neighbour in turn and recurses.
func (k *kekuleSearch) solve(system []int, pos int) bool {
	for pos < len(system) && k.match[system[pos]] >= 0 {
		pos++
	}
	if pos == len(system) {
		return true
	}
	ai := system[pos]
	for _, bi := range k.mol.adjacency[ai] {
		b := &k.mol.Bonds[bi]
		o := b.Other(ai)
		if b.Order != BondAromatic || !k.need[o] || k.match[o] >= 0 {
			continue
		}
		if k.budget == 0 {
			k.exhausted = true
			return false
		}
		k.budget--
		k.match[ai], k.match[o] = o, ai
		if k.solve(system, pos+1) {
			return true
		}
		k.match[ai], k.match[o] = -1, -1
		if k.exhausted {
			return false
		}
	}
	return false
}

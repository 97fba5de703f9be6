package molecule

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// InvariantKind selects the initial atom invariants of a circular fingerprint.
type InvariantKind int

const (
	// InvariantsAtom uses connectivity invariants (ECFP-like).
	InvariantsAtom InvariantKind = iota
	// InvariantsFeature uses pharmacophoric feature classes (FCFP-like).
	InvariantsFeature
)

// String returns the invariant kind name.
func (k InvariantKind) String() string {
	if k == InvariantsFeature {
		return "feature"
	}
	return "atom"
}

// DefaultBitVectorSize is the folded fingerprint width used by the activity
// classifier.
const DefaultBitVectorSize = 2048

// Pharmacophore feature flags that make up a feature invariant.
const (
	FeatureDonor uint32 = 1 << iota
	FeatureAcceptor
	FeatureAromatic
	FeatureHalogen
	FeatureBasic
	FeatureAcidic
)

// MorganFingerprint computes the unfolded presence-only circular fingerprint
// of m up to radius bonds.
func MorganFingerprint(m *Molecule, radius int, kind InvariantKind) *SparseFingerprint {
	return NewSparseFingerprint(morganIdentifiers(m, radius, kind))
}

// MorganBitVector computes the circular fingerprint of m with connectivity
// invariants folded onto nBits bits.
func MorganBitVector(m *Molecule, radius, nBits int) *BitVector {
	return MorganFingerprint(m, radius, InvariantsAtom).Fold(nBits)
}

// bondSet is a bitset over bond indices.
type bondSet []uint64

func (s bondSet) key() string {
	buf := make([]byte, 8*len(s))
	for i, w := range s {
		binary.LittleEndian.PutUint64(buf[8*i:], w)
	}
	return string(buf)
}

type environment struct {
	atom  int
	id    uint32
	bonds bondSet
	key   string
}

// morganIdentifiers runs the iterative neighbourhood hashing. Every initial
// invariant is emitted; at later radii an environment whose bond set was
// already seen is dropped and its atom stops growing.
func morganIdentifiers(m *Molecule, radius int, kind InvariantKind) []uint32 {
	n := len(m.Atoms)
	if n == 0 {
		return nil
	}

	ids := make([]uint32, n)
	for i := range m.Atoms {
		if kind == InvariantsFeature {
			ids[i] = m.featureInvariant(i)
		} else {
			ids[i] = m.atomInvariant(i)
		}
	}
	out := make([]uint32, 0, n*(radius+1))
	out = append(out, ids...)

	words := (len(m.Bonds) + 63) / 64
	neighbourhoods := make([]bondSet, n)
	for i := range neighbourhoods {
		neighbourhoods[i] = make(bondSet, words)
	}
	dead := make([]bool, n)
	seen := make(map[string]struct{})
	next := make([]uint32, n)
	var buf []byte

	for r := 1; r <= radius; r++ {
		envs := make([]environment, 0, n)
		nextNbh := make([]bondSet, n)
		copy(next, ids)

		for i := 0; i < n; i++ {
			if dead[i] {
				continue
			}
			incident := m.adjacency[i]
			if len(incident) == 0 {
				dead[i] = true
				continue
			}

			env := make(bondSet, words)
			copy(env, neighbourhoods[i])
			pairs := make([]uint64, 0, len(incident))
			for _, bi := range incident {
				nbr := m.Bonds[bi].Other(i)
				pairs = append(pairs, uint64(bondCode(m.Bonds[bi].Order))<<32|uint64(ids[nbr]))
				env[bi/64] |= 1 << uint(bi%64)
				for w := range env {
					env[w] |= neighbourhoods[nbr][w]
				}
			}
			sort.Slice(pairs, func(a, b int) bool { return pairs[a] < pairs[b] })

			buf = buf[:0]
			buf = binary.LittleEndian.AppendUint32(buf, uint32(r))
			buf = binary.LittleEndian.AppendUint32(buf, ids[i])
			for _, p := range pairs {
				buf = binary.LittleEndian.AppendUint64(buf, p)
			}
			next[i] = uint32(xxhash.Sum64(buf))
			nextNbh[i] = env
			envs = append(envs, environment{atom: i, id: next[i], bonds: env, key: env.key()})
		}

		sort.Slice(envs, func(a, b int) bool {
			if envs[a].key != envs[b].key {
				return envs[a].key < envs[b].key
			}
			return envs[a].id < envs[b].id
		})
		for _, e := range envs {
			if _, dup := seen[e.key]; dup {
				dead[e.atom] = true
				continue
			}
			seen[e.key] = struct{}{}
			out = append(out, e.id)
		}

		copy(ids, next)
		for i, nb := range nextNbh {
			if nb != nil {
				neighbourhoods[i] = nb
			}
		}
	}
	return out
}

func bondCode(o BondOrder) uint32 {
	if o == BondAromatic {
		return 12
	}
	return uint32(o)
}

// atomInvariant hashes the connectivity invariants of atom i: atomic number,
// total degree, total hydrogens, formal charge, isotope and ring membership.
func (m *Molecule) atomInvariant(i int) uint32 {
	a := &m.Atoms[i]
	ring := uint32(0)
	if a.InRing {
		ring = 1
	}
	var buf [24]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(a.AtomicNumber))
	binary.LittleEndian.PutUint32(buf[4:], uint32(m.Degree(i)+a.TotalHs()))
	binary.LittleEndian.PutUint32(buf[8:], uint32(a.TotalHs()))
	binary.LittleEndian.PutUint32(buf[12:], uint32(int32(a.Charge)))
	binary.LittleEndian.PutUint32(buf[16:], uint32(a.Isotope))
	binary.LittleEndian.PutUint32(buf[20:], ring)
	return uint32(xxhash.Sum64(buf[:]))
}

// featureInvariant returns the pharmacophore feature flags of atom i.
func (m *Molecule) featureInvariant(i int) uint32 {
	var f uint32
	if m.isDonor(i) {
		f |= FeatureDonor
	}
	if m.isAcceptor(i) {
		f |= FeatureAcceptor
	}
	if m.Atoms[i].Aromatic {
		f |= FeatureAromatic
	}
	switch m.Atoms[i].AtomicNumber {
	case AtomicNumberFluorine, AtomicNumberChlorine, AtomicNumberBromine, AtomicNumberIodine:
		f |= FeatureHalogen
	}
	if m.isBasic(i) {
		f |= FeatureBasic
	}
	if m.isAcidic(i) {
		f |= FeatureAcidic
	}
	return f
}

// explicitValence sums bond valences and attached hydrogens.
func (m *Molecule) explicitValence(i int) int {
	v := m.Atoms[i].TotalHs()
	for _, bi := range m.adjacency[i] {
		v += m.Bonds[bi].Order.valence()
	}
	return v
}

// hasDoubleTo reports whether atom i is double bonded to an atom whose
// atomic number is in zs.
func (m *Molecule) hasDoubleTo(i int, zs ...int) bool {
	for _, bi := range m.adjacency[i] {
		if m.Bonds[bi].Order != BondDouble {
			continue
		}
		other := m.Atoms[m.Bonds[bi].Other(i)].AtomicNumber
		for _, z := range zs {
			if other == z {
				return true
			}
		}
	}
	return false
}

func (m *Molecule) isDonor(i int) bool {
	a := &m.Atoms[i]
	h := a.TotalHs()
	switch a.AtomicNumber {
	case AtomicNumberNitrogen:
		if a.Aromatic {
			return h > 0 && a.Charge == 0
		}
		v := m.explicitValence(i)
		return h > 0 && ((a.Charge == 0 && v == 3) || (a.Charge == 1 && v == 4))
	case AtomicNumberOxygen, AtomicNumberSulphur:
		return h == 1 && a.Charge == 0
	}
	return false
}

func (m *Molecule) isAcceptor(i int) bool {
	a := &m.Atoms[i]
	h := a.TotalHs()
	switch a.AtomicNumber {
	case AtomicNumberOxygen, AtomicNumberSulphur:
		if a.Charge < 0 {
			return true
		}
		if a.Charge != 0 {
			return false
		}
		v := m.explicitValence(i)
		if h == 0 && (v == 1 || v == 2) {
			return true
		}
		if h == 1 && v == 2 {
			// Hydroxyl on an acid carbon is not an acceptor.
			for _, bi := range m.adjacency[i] {
				if m.hasDoubleTo(m.Bonds[bi].Other(i), AtomicNumberOxygen, AtomicNumberNitrogen, AtomicNumberPhospho, AtomicNumberSulphur) {
					return false
				}
			}
			return true
		}
	case AtomicNumberNitrogen:
		if a.Charge != 0 || h > 0 {
			return false
		}
		if a.Aromatic {
			return m.Degree(i) < 3
		}
		for _, bi := range m.adjacency[i] {
			b := &m.Bonds[bi]
			if b.Order == BondTriple && m.Atoms[b.Other(i)].AtomicNumber == AtomicNumberCarbon {
				return true
			}
		}
		if m.explicitValence(i) == 3 {
			for _, bi := range m.adjacency[i] {
				if m.Atoms[m.Bonds[bi].Other(i)].Aromatic {
					return true
				}
			}
		}
	}
	return false
}

func (m *Molecule) isBasic(i int) bool {
	a := &m.Atoms[i]
	if a.AtomicNumber != AtomicNumberNitrogen {
		return false
	}
	if a.Charge > 0 {
		return true
	}
	if a.Charge != 0 || a.Aromatic {
		return false
	}
	h := a.TotalHs()
	heavy := 0
	for _, bi := range m.adjacency[i] {
		b := &m.Bonds[bi]
		if b.Order != BondSingle {
			return false
		}
		nbr := b.Other(i)
		na := &m.Atoms[nbr]
		if na.AtomicNumber != AtomicNumberCarbon && !na.Aromatic {
			return false
		}
		if m.hasDoubleTo(nbr, AtomicNumberOxygen) {
			return false
		}
		if h == 0 && na.Aromatic {
			return false
		}
		heavy++
	}
	return heavy > 0 && heavy+h == 3
}

func (m *Molecule) isAcidic(i int) bool {
	a := &m.Atoms[i]
	if a.AtomicNumber != AtomicNumberCarbon && a.AtomicNumber != AtomicNumberSulphur {
		return false
	}
	if !m.hasDoubleTo(i, AtomicNumberOxygen, AtomicNumberSulphur, AtomicNumberPhospho) {
		return false
	}
	for _, bi := range m.adjacency[i] {
		b := &m.Bonds[bi]
		if b.Order != BondSingle {
			continue
		}
		o := &m.Atoms[b.Other(i)]
		if o.AtomicNumber == AtomicNumberOxygen && (o.TotalHs() == 1 || o.Charge == -1) {
			return true
		}
	}
	return false
}

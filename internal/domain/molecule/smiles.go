package molecule

import (
	"fmt"
	"strings"
)

// SyntaxError describes why a SMILES string was rejected.
type SyntaxError struct {
	SMILES string
	Pos    int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("smiles %q: position %d: %s", e.SMILES, e.Pos, e.Msg)
}

type ringOpening struct {
	atom    int
	order   BondOrder
	ordered bool
}

type branch struct {
	origin int
	filled bool
}

type smilesParser struct {
	src      string
	pos      int
	mol      *Molecule
	prev     int
	bond     BondOrder
	bondSet  bool
	branches []branch
	rings    map[int]ringOpening
}

// ParseSMILES parses s into a sanitised Molecule. The empty string yields an
// empty molecule. Explicit hydrogens written as separate [H] atoms are folded
// into their neighbour's hydrogen count.
func ParseSMILES(s string) (*Molecule, error) {
	p := &smilesParser{
		src:   s,
		mol:   &Molecule{},
		prev:  -1,
		rings: make(map[int]ringOpening),
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	if err := p.sanitize(); err != nil {
		return nil, err
	}
	p.mol.foldHydrogens()
	return p.mol, nil
}

func (p *smilesParser) errorf(format string, args ...interface{}) error {
	return &SyntaxError{SMILES: p.src, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *smilesParser) parse() error {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.errorf("branch without a preceding atom")
			}
			if p.bondSet {
				return p.errorf("bond symbol before branch")
			}
			p.branches = append(p.branches, branch{origin: p.prev})
			p.pos++
		case c == ')':
			n := len(p.branches)
			if n == 0 {
				return p.errorf("unbalanced ')'")
			}
			if p.bondSet {
				return p.errorf("bond symbol without a following atom")
			}
			if !p.branches[n-1].filled {
				return p.errorf("empty branch")
			}
			p.prev = p.branches[n-1].origin
			p.branches = p.branches[:n-1]
			p.pos++
		case strings.IndexByte("-=#$:/\\", c) >= 0:
			if p.prev < 0 {
				return p.errorf("bond symbol without a preceding atom")
			}
			if p.bondSet {
				return p.errorf("consecutive bond symbols")
			}
			p.bond = bondFromSymbol(c)
			p.bondSet = true
			p.pos++
		case c == '.':
			if p.prev < 0 || p.bondSet {
				return p.errorf("misplaced '.'")
			}
			if len(p.branches) > 0 {
				return p.errorf("'.' inside a branch")
			}
			p.prev = -1
			p.pos++
		case c >= '0' && c <= '9':
			if err := p.ringClosure(int(c - '0')); err != nil {
				return err
			}
			p.pos++
		case c == '%':
			if p.pos+2 >= len(p.src) || !isDigit(p.src[p.pos+1]) || !isDigit(p.src[p.pos+2]) {
				return p.errorf("'%%' must be followed by two digits")
			}
			num := int(p.src[p.pos+1]-'0')*10 + int(p.src[p.pos+2]-'0')
			if err := p.ringClosure(num); err != nil {
				return err
			}
			p.pos += 3
		case c == '[':
			if err := p.bracketAtom(); err != nil {
				return err
			}
		default:
			if err := p.organicAtom(); err != nil {
				return err
			}
		}
	}

	if p.bondSet {
		return p.errorf("bond symbol without a following atom")
	}
	if len(p.branches) > 0 {
		return p.errorf("unbalanced '('")
	}
	if len(p.rings) > 0 {
		for num := range p.rings {
			return p.errorf("unclosed ring %d", num)
		}
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func bondFromSymbol(c byte) BondOrder {
	switch c {
	case '=':
		return BondDouble
	case '#':
		return BondTriple
	case '$':
		return BondQuadruple
	case ':':
		return BondAromatic
	default:
		// '-', '/' and '\' are single bonds; stereo is not perceived.
		return BondSingle
	}
}

// defaultOrder is the order of an unwritten bond between atoms a and b.
func (p *smilesParser) defaultOrder(a, b int) BondOrder {
	if p.mol.Atoms[a].Aromatic && p.mol.Atoms[b].Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func (p *smilesParser) attach(a Atom) {
	idx := p.mol.addAtom(a)
	if p.prev >= 0 {
		if p.bondSet {
			p.mol.addBond(p.prev, idx, p.bond, false)
		} else {
			p.mol.addBond(p.prev, idx, p.defaultOrder(p.prev, idx), true)
		}
	}
	p.bondSet = false
	p.prev = idx
	if n := len(p.branches); n > 0 {
		p.branches[n-1].filled = true
	}
}

func (p *smilesParser) ringClosure(num int) error {
	if p.prev < 0 {
		return p.errorf("ring closure without a preceding atom")
	}
	open, ok := p.rings[num]
	if !ok {
		p.rings[num] = ringOpening{atom: p.prev, order: p.bond, ordered: p.bondSet}
		p.bondSet = false
		return nil
	}
	delete(p.rings, num)

	if open.atom == p.prev {
		return p.errorf("ring %d closes on itself", num)
	}
	if p.mol.bondBetween(open.atom, p.prev) >= 0 {
		return p.errorf("ring %d duplicates an existing bond", num)
	}

	switch {
	case p.bondSet && open.ordered && p.bond != open.order:
		return p.errorf("conflicting bond orders for ring %d", num)
	case p.bondSet:
		p.mol.addBond(open.atom, p.prev, p.bond, false)
	case open.ordered:
		p.mol.addBond(open.atom, p.prev, open.order, false)
	default:
		p.mol.addBond(open.atom, p.prev, p.defaultOrder(open.atom, p.prev), true)
	}
	p.bondSet = false
	return nil
}

func (p *smilesParser) organicAtom() error {
	c := p.src[p.pos]
	sym := string(c)
	if p.pos+1 < len(p.src) {
		switch p.src[p.pos : p.pos+2] {
		case "Cl", "Br":
			sym = p.src[p.pos : p.pos+2]
		}
	}

	if organicSubset[sym] {
		e := elementsBySymbol[sym]
		p.attach(Atom{AtomicNumber: e.AtomicNumber, Symbol: e.Symbol})
		p.pos += len(sym)
		return nil
	}
	if std, ok := aromaticSymbols[sym]; ok && len(sym) == 1 {
		e := elementsBySymbol[std]
		p.attach(Atom{AtomicNumber: e.AtomicNumber, Symbol: e.Symbol, Aromatic: true})
		p.pos++
		return nil
	}
	return p.errorf("unexpected character %q", c)
}

// bracketAtom parses "[" isotope? symbol chiral? hcount? charge? class? "]".
func (p *smilesParser) bracketAtom() error {
	end := strings.IndexByte(p.src[p.pos:], ']')
	if end < 0 {
		return p.errorf("unclosed '['")
	}
	body := p.src[p.pos+1 : p.pos+end]
	i := 0
	atom := Atom{bracket: true}

	for i < len(body) && isDigit(body[i]) {
		atom.Isotope = atom.Isotope*10 + int(body[i]-'0')
		i++
	}

	sym, aromatic, n := bracketSymbol(body[i:])
	if n == 0 {
		return p.errorf("unknown element in %q", body)
	}
	e := elementsBySymbol[sym]
	atom.AtomicNumber = e.AtomicNumber
	atom.Symbol = e.Symbol
	atom.Aromatic = aromatic
	i += n

	if i < len(body) && body[i] == '@' {
		i++
		if i < len(body) && body[i] == '@' {
			i++
		} else if i+1 < len(body) && isChiralClass(body[i:i+2]) {
			i += 2
			for i < len(body) && isDigit(body[i]) {
				i++
			}
		}
	}

	if i < len(body) && body[i] == 'H' {
		i++
		atom.ExplicitHs = 1
		if i < len(body) && isDigit(body[i]) {
			atom.ExplicitHs = int(body[i] - '0')
			i++
		}
	}

	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := body[i]
		i++
		mag := 1
		if i < len(body) && isDigit(body[i]) {
			mag = 0
			for i < len(body) && isDigit(body[i]) {
				mag = mag*10 + int(body[i]-'0')
				i++
			}
		} else {
			for i < len(body) && body[i] == sign {
				mag++
				i++
			}
		}
		if sign == '-' {
			mag = -mag
		}
		atom.Charge = mag
	}

	if i < len(body) && body[i] == ':' {
		i++
		start := i
		for i < len(body) && isDigit(body[i]) {
			i++
		}
		if i == start {
			return p.errorf("atom class without digits in %q", body)
		}
	}

	if i != len(body) {
		return p.errorf("unexpected %q in bracket atom %q", body[i:], body)
	}

	p.attach(atom)
	p.pos += end + 1
	return nil
}

func isChiralClass(s string) bool {
	switch s {
	case "TH", "AL", "SP", "TB", "OH":
		return true
	}
	return false
}

// bracketSymbol reads an element symbol at the start of s. It returns the
// canonical symbol, whether it was written in aromatic form and the number of
// bytes consumed (0 when no element matched).
func bracketSymbol(s string) (string, bool, int) {
	if s == "" {
		return "", false, 0
	}
	if s[0] == '*' {
		return "*", false, 1
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		if len(s) >= 2 {
			if std, ok := aromaticSymbols[s[:2]]; ok {
				return std, true, 2
			}
		}
		if std, ok := aromaticSymbols[s[:1]]; ok {
			return std, true, 1
		}
		return "", false, 0
	}
	if len(s) >= 2 && s[1] >= 'a' && s[1] <= 'z' {
		if _, ok := elementsBySymbol[s[:2]]; ok {
			return s[:2], false, 2
		}
	}
	if _, ok := elementsBySymbol[s[:1]]; ok {
		return s[:1], false, 1
	}
	return "", false, 0
}

// sanitize perceives rings, settles aromatic bonds and checks valences.
func (p *smilesParser) sanitize() error {
	m := p.mol
	m.perceiveRings()

	for bi := range m.Bonds {
		b := &m.Bonds[bi]
		if b.Order != BondAromatic || b.InRing {
			continue
		}
		if !b.implicit {
			return &SyntaxError{SMILES: p.src, Pos: -1, Msg: "aromatic bond outside a ring"}
		}
		b.Order = BondSingle
	}

	for ai := range m.Atoms {
		a := &m.Atoms[ai]
		if a.Aromatic && !a.InRing {
			return &SyntaxError{SMILES: p.src, Pos: -1, Msg: fmt.Sprintf("non-ring atom %d marked aromatic", ai)}
		}
		if err := m.assignHydrogens(ai); err != nil {
			return &SyntaxError{SMILES: p.src, Pos: -1, Msg: err.Error()}
		}
	}
	if err := m.kekulize(); err != nil {
		return &SyntaxError{SMILES: p.src, Pos: -1, Msg: err.Error()}
	}
	return nil
}

// piEligible reports whether an aromatic atom contributes an extra unit of
// valence to its ring. Neutral chalcogens donate a lone pair instead.
func piEligible(a *Atom) bool {
	if !a.Aromatic {
		return false
	}
	switch a.AtomicNumber {
	case AtomicNumberOxygen, AtomicNumberSulphur, 34, 52:
		return a.Charge != 0
	}
	return true
}

func (m *Molecule) assignHydrogens(idx int) error {
	a := &m.Atoms[idx]
	if a.AtomicNumber == 0 {
		return nil
	}

	used, hasDouble := m.bondedValence(idx)
	valences, checked := isoelectronicValences(a.AtomicNumber, a.Charge)
	if !checked {
		return nil
	}
	maxV := valences[len(valences)-1]

	if piEligible(a) && !hasDouble && used+1 <= maxV {
		used++
	}
	if used > maxV {
		return fmt.Errorf("atom %d (%s) exceeds maximum valence %d", idx, a.Symbol, maxV)
	}
	if a.bracket {
		return nil
	}
	for _, v := range valences {
		if v >= used {
			a.ImplicitHs = v - used
			return nil
		}
	}
	return nil
}

// foldHydrogens removes plain [H] atoms bonded to exactly one non-hydrogen
// atom and adds them to that neighbour's explicit hydrogen count.
func (m *Molecule) foldHydrogens() {
	remove := make([]bool, len(m.Atoms))
	found := false
	for ai := range m.Atoms {
		a := &m.Atoms[ai]
		if a.AtomicNumber != 1 || a.Isotope != 0 || a.Charge != 0 || len(m.adjacency[ai]) != 1 {
			continue
		}
		b := &m.Bonds[m.adjacency[ai][0]]
		nbr := b.Other(ai)
		if m.Atoms[nbr].AtomicNumber == 1 || b.Order != BondSingle {
			continue
		}
		remove[ai] = true
		found = true
	}
	if !found {
		return
	}

	remap := make([]int, len(m.Atoms))
	atoms := make([]Atom, 0, len(m.Atoms))
	for ai := range m.Atoms {
		if remove[ai] {
			remap[ai] = -1
			continue
		}
		remap[ai] = len(atoms)
		atoms = append(atoms, m.Atoms[ai])
	}
	for ai := range m.Atoms {
		if remove[ai] {
			nbr := m.Bonds[m.adjacency[ai][0]].Other(ai)
			atoms[remap[nbr]].ExplicitHs++
		}
	}

	old := m.Bonds
	m.Atoms = atoms
	m.Bonds = nil
	m.adjacency = make([][]int, len(atoms))
	for _, b := range old {
		if remap[b.Begin] < 0 || remap[b.End] < 0 {
			continue
		}
		idx := m.addBond(remap[b.Begin], remap[b.End], b.Order, b.implicit)
		m.Bonds[idx].InRing = b.InRing
	}
}

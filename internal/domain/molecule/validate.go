package molecule

// Batch is the result of validating a list of SMILES strings.
type Batch struct {
	// Molecules holds the handles of the valid identifiers in input order.
	Molecules []*Molecule
	// Positions[i] is the input index of Molecules[i].
	Positions []int
	// Valid has one entry per input identifier.
	Valid []bool
}

// Len returns the number of valid molecules.
func (b Batch) Len() int { return len(b.Molecules) }

// Size returns the number of input identifiers.
func (b Batch) Size() int { return len(b.Valid) }

// Partition parses every identifier and separates the valid ones, keeping
// their relative order. Invalid identifiers are excluded from Molecules but
// keep their slot in Valid.
func Partition(tk Toolkit, smiles []string) Batch {
	b := Batch{
		Molecules: make([]*Molecule, 0, len(smiles)),
		Positions: make([]int, 0, len(smiles)),
		Valid:     make([]bool, len(smiles)),
	}
	for i, s := range smiles {
		mol, ok := tk.Parse(s)
		if !ok || mol == nil {
			continue
		}
		b.Molecules = append(b.Molecules, mol)
		b.Positions = append(b.Positions, i)
		b.Valid[i] = true
	}
	return b
}

package molecule

// Toolkit is the chemistry collaborator used by the scoring functions.
// Implementations must be safe for concurrent use.
type Toolkit interface {
	// Parse converts a SMILES string into a molecule. ok is false when the
	// identifier is not a valid molecule; this is a per-item outcome.
	Parse(smiles string) (mol *Molecule, ok bool)

	// Fingerprint computes the unfolded presence-only circular fingerprint.
	Fingerprint(mol *Molecule, radius int, kind InvariantKind) *SparseFingerprint

	// BitFingerprint computes the folded circular fingerprint.
	BitFingerprint(mol *Molecule, radius, nBits int) *BitVector
}

type defaultToolkit struct{}

// NewToolkit returns the built-in pure-Go toolkit.
func NewToolkit() Toolkit { return defaultToolkit{} }

func (defaultToolkit) Parse(smiles string) (*Molecule, bool) {
	mol, err := ParseSMILES(smiles)
	if err != nil {
		return nil, false
	}
	return mol, true
}

func (defaultToolkit) Fingerprint(mol *Molecule, radius int, kind InvariantKind) *SparseFingerprint {
	return MorganFingerprint(mol, radius, kind)
}

func (defaultToolkit) BitFingerprint(mol *Molecule, radius, nBits int) *BitVector {
	return MorganBitVector(mol, radius, nBits)
}

package scoring

import (
	"context"

	"github.com/turtacn/molscore/internal/domain/molecule"
)

// noSulphur rewards molecules without sulphur: +1 without, -1 with.
type noSulphur struct {
	runner
}

// NewNoSulphur constructs the no_sulphur scorer. It has no options.
func NewNoSulphur(_ context.Context, _ Options, deps Dependencies) (Scorer, error) {
	deps = deps.withDefaults()
	return &noSulphur{runner: newRunner(NameNoSulphur, deps)}, nil
}

func (s *noSulphur) Score(ctx context.Context, smiles []string) ([]float32, error) {
	batch, err := s.validate(ctx, smiles)
	if err != nil {
		return nil, err
	}
	return ScorePartition(ctx, batch, SentinelNoSulphur, PerMolecule(s.workers, sulphurFree))
}

func sulphurFree(mol *molecule.Molecule) float32 {
	if mol.HasElement(molecule.AtomicNumberSulphur) {
		return -1
	}
	return 1
}

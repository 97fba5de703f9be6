package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/turtacn/molscore/internal/domain/molecule"
	"github.com/turtacn/molscore/pkg/errors"
)

// ReferenceSMILES is the default reference structure (celecoxib).
const ReferenceSMILES = "Cc1ccc(cc1)c2cc(nn2c3ccc(cc3)S(=O)(=O)N)C(F)(F)F"

// DefaultTanimotoK is the similarity at which the score saturates.
const DefaultTanimotoK = 0.7

// tanimotoRadius is the circular fingerprint radius used for similarity.
const tanimotoRadius = 2

// Option keys understood by the tanimoto scorer.
const (
	OptionK         = "k"
	OptionReference = "reference"
)

// tanimoto scores similarity to a fixed reference. Similarity is clipped at
// k and mapped linearly so that 0 scores -1 and k or more scores +1.
type tanimoto struct {
	runner
	k   float64
	ref *molecule.SparseFingerprint
}

// NewTanimoto constructs the tanimoto scorer. The reference fingerprint is
// computed once here and shared by every Score call.
func NewTanimoto(_ context.Context, opts Options, deps Dependencies) (Scorer, error) {
	deps = deps.withDefaults()

	k, err := opts.Float64(OptionK, DefaultTanimotoK)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(k) || k <= 0 || k > 1 {
		return nil, errors.New(errors.ErrCodeScorerConfigInvalid, "k must be in (0, 1]").
			WithDetail(fmt.Sprintf("k=%v", k))
	}

	refSMILES, err := opts.String(OptionReference, ReferenceSMILES)
	if err != nil {
		return nil, err
	}
	ref, ok := deps.Toolkit.Parse(refSMILES)
	if !ok {
		return nil, errors.New(errors.ErrCodeScorerConfigInvalid, "reference structure is not a valid molecule").
			WithDetail(refSMILES)
	}

	return &tanimoto{
		runner: newRunner(NameTanimoto, deps),
		k:      k,
		ref:    deps.Toolkit.Fingerprint(ref, tanimotoRadius, molecule.InvariantsFeature),
	}, nil
}

func (s *tanimoto) Score(ctx context.Context, smiles []string) ([]float32, error) {
	batch, err := s.validate(ctx, smiles)
	if err != nil {
		return nil, err
	}
	return ScorePartition(ctx, batch, SentinelTanimoto, PerMolecule(s.workers, s.similarityScore))
}

func (s *tanimoto) similarityScore(mol *molecule.Molecule) float32 {
	fp := s.toolkit.Fingerprint(mol, tanimotoRadius, molecule.InvariantsFeature)
	return float32(clippedSimilarityScore(molecule.Tversky(s.ref, fp, 1, 1), s.k))
}

func clippedSimilarityScore(sim, k float64) float64 {
	return -1 + 2*math.Min(sim, k)/k
}

package scoring

import (
	"context"
	"fmt"

	"github.com/turtacn/molscore/internal/domain/molecule"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	activity "github.com/turtacn/molscore/internal/intelligence/activity_model"
	"github.com/turtacn/molscore/pkg/errors"
)

// Feature layout expected by the activity classifier.
const (
	ActivityRadius = 3
	ActivityBits   = molecule.DefaultBitVectorSize
)

// ActivityFeatures returns the classifier input for mol: a radius-3 circular
// fingerprint folded to 2048 bits, as 0/1 values.
func ActivityFeatures(mol *molecule.Molecule) []float32 {
	return molecule.MorganBitVector(mol, ActivityRadius, ActivityBits).Float32s()
}

// activityModel maps the predicted probability of activity p to 2p-1.
type activityModel struct {
	runner
	clf      activity.Classifier
	location string
}

// NewActivityModel loads the classifier once and constructs the
// activity_model scorer. A load failure is a resource-unavailable error.
func NewActivityModel(ctx context.Context, _ Options, deps Dependencies) (Scorer, error) {
	deps = deps.withDefaults()

	clf, err := deps.ModelLoader.Load(ctx, deps.ModelLocation)
	if err != nil {
		return nil, errors.ResourceUnavailable(err, deps.ModelLocation)
	}
	if clf.NumFeatures() != ActivityBits {
		mismatch := errors.New(errors.ErrCodeModelVersionMismatch, "classifier feature width does not match fingerprint").
			WithDetail(fmt.Sprintf("classifier=%d fingerprint=%d", clf.NumFeatures(), ActivityBits))
		return nil, errors.ResourceUnavailable(mismatch, deps.ModelLocation)
	}

	deps.Logger.Info("activity classifier ready",
		logging.String("location", deps.ModelLocation),
		logging.Int("n_features", clf.NumFeatures()),
	)
	return &activityModel{
		runner:   newRunner(NameActivityModel, deps),
		clf:      clf,
		location: deps.ModelLocation,
	}, nil
}

func (s *activityModel) Score(ctx context.Context, smiles []string) ([]float32, error) {
	batch, err := s.validate(ctx, smiles)
	if err != nil {
		return nil, err
	}
	return ScorePartition(ctx, batch, SentinelActivityModel, s.predict)
}

func (s *activityModel) predict(ctx context.Context, mols []*molecule.Molecule) ([]float32, error) {
	features, err := MapOrdered(ctx, s.workers, mols, ActivityFeatures)
	if err != nil {
		return nil, err
	}
	probs, err := s.clf.PredictProba(ctx, features)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(err, errors.ErrCodeAIInferenceFailed, "activity prediction failed").WithDetail(s.location)
	}
	if len(probs) != len(features) {
		return nil, errors.New(errors.ErrCodeAIInferenceFailed, "classifier returned wrong number of probabilities").
			WithDetail(fmt.Sprintf("got=%d want=%d", len(probs), len(features)))
	}
	out := make([]float32, len(probs))
	for i, p := range probs {
		out[i] = float32(-1 + 2*p)
	}
	return out, nil
}

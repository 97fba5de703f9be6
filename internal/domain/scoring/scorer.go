// Package scoring provides the pluggable scoring functions that turn a batch
// of SMILES strings into desirability scores for a molecular optimiser.
//
// Every scorer validates its input, evaluates only the valid molecules and
// returns one float32 per input, in input order. Invalid identifiers receive
// the scorer's sentinel value:
//
//	no_sulphur      0
//	tanimoto       -1
//	activity_model -1
package scoring

import (
	"context"

	"github.com/turtacn/molscore/internal/domain/molecule"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	activity "github.com/turtacn/molscore/internal/intelligence/activity_model"
)

// Scorer names.
const (
	NameNoSulphur     = "no_sulphur"
	NameTanimoto      = "tanimoto"
	NameActivityModel = "activity_model"
)

// Sentinel scores for invalid identifiers.
const (
	SentinelNoSulphur     float32 = 0
	SentinelTanimoto      float32 = -1
	SentinelActivityModel float32 = -1
)

// Scorer maps a batch of SMILES strings to scores of the same length and
// order. Invalid identifiers never cause an error; Score fails only on
// context cancellation or a collaborator failure.
type Scorer interface {
	Name() string
	Score(ctx context.Context, smiles []string) ([]float32, error)
}

// ClassifierLoader loads a trained classifier from a location.
type ClassifierLoader interface {
	Load(ctx context.Context, location string) (activity.Classifier, error)
}

// BatchObserver is told how many identifiers of each batch were valid.
type BatchObserver interface {
	ObserveBatch(scorer string, total, valid int)
}

type nopObserver struct{}

func (nopObserver) ObserveBatch(string, int, int) {}

// ValidityFunc receives the validity mask of a batch, aligned with its input.
type ValidityFunc func(mask []bool)

type validityKey struct{}

// WithValidityReport returns a context under which scorers built on the
// shared batch helpers pass each batch's validity mask to fn. A nested
// report replaces the outer one.
func WithValidityReport(ctx context.Context, fn ValidityFunc) context.Context {
	return context.WithValue(ctx, validityKey{}, fn)
}

func reportValidity(ctx context.Context, mask []bool) {
	if fn, ok := ctx.Value(validityKey{}).(ValidityFunc); ok && fn != nil {
		fn(mask)
	}
}

// Dependencies are the collaborators injected into scorer constructors.
type Dependencies struct {
	Toolkit  molecule.Toolkit
	Logger   logging.Logger
	Observer BatchObserver

	// Workers bounds the goroutines used per batch. Values <= 1 score
	// sequentially.
	Workers int

	// ModelLocation is where activity_model loads its classifier from.
	ModelLocation string
	ModelLoader   ClassifierLoader
}

// DefaultModelLocation is the classifier location used when none is set.
const DefaultModelLocation = "data/clf.json"

func (d Dependencies) withDefaults() Dependencies {
	if d.Toolkit == nil {
		d.Toolkit = molecule.NewToolkit()
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.ModelLocation == "" {
		d.ModelLocation = DefaultModelLocation
	}
	if d.ModelLoader == nil {
		d.ModelLoader = activity.NewLoader(activity.WithLogger(d.Logger))
	}
	return d
}

// runner holds what every built-in scorer needs to validate a batch.
type runner struct {
	name     string
	toolkit  molecule.Toolkit
	workers  int
	observer BatchObserver
}

func newRunner(name string, deps Dependencies) runner {
	return runner{name: name, toolkit: deps.Toolkit, workers: deps.Workers, observer: deps.Observer}
}

func (r runner) Name() string { return r.name }

func (r runner) validate(ctx context.Context, smiles []string) (molecule.Batch, error) {
	if err := ctx.Err(); err != nil {
		return molecule.Batch{}, err
	}
	b := molecule.Partition(r.toolkit, smiles)
	r.observer.ObserveBatch(r.name, b.Size(), b.Len())
	reportValidity(ctx, b.Valid)
	return b, nil
}

var sentinels = map[string]float32{
	NameNoSulphur:     SentinelNoSulphur,
	NameTanimoto:      SentinelTanimoto,
	NameActivityModel: SentinelActivityModel,
}

// Sentinel returns the invalid-identifier score of a built-in scorer.
func Sentinel(name string) (float32, bool) {
	v, ok := sentinels[name]
	return v, ok
}

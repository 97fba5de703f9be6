// Package activity_model decodes and evaluates the binary activity classifier
// used by the activity_model scoring function. A classifier maps a folded
// circular fingerprint to the probability that the molecule is active.
package activity_model

import (
	"context"
	"fmt"
	"math"

	"github.com/turtacn/molscore/pkg/errors"
)

// Classifier predicts the probability of the active class for each feature
// row. Implementations are immutable after construction and safe for
// concurrent use.
type Classifier interface {
	// NumFeatures is the required width of every feature row.
	NumFeatures() int

	// PredictProba returns one probability in [0, 1] per row.
	PredictProba(ctx context.Context, features [][]float32) ([]float64, error)
}

// Artifact kinds.
const (
	KindSVC      = "svc"
	KindLogistic = "logistic"
)

// Kernel functions supported by the support vector classifier.
const (
	KernelLinear = "linear"
	KernelRBF    = "rbf"
)

// Artifact is the serialised form of a trained classifier.
type Artifact struct {
	Kind      string  `json:"kind"`
	Version   string  `json:"version,omitempty"`
	NFeatures int     `json:"n_features"`
	Intercept float64 `json:"intercept"`

	// Support vector classifier fields. Support vectors are binary and
	// stored as their on-bit indices.
	Kernel         string    `json:"kernel,omitempty"`
	Gamma          float64   `json:"gamma,omitempty"`
	SupportVectors [][]int   `json:"support_vectors,omitempty"`
	DualCoef       []float64 `json:"dual_coef,omitempty"`
	ProbA          float64   `json:"prob_a,omitempty"`
	ProbB          float64   `json:"prob_b,omitempty"`

	// Logistic model fields.
	Weights []float64 `json:"weights,omitempty"`
}

// Build validates the artifact and returns the classifier it describes.
func (a *Artifact) Build() (Classifier, error) {
	if a.NFeatures <= 0 {
		return nil, errors.New(errors.ErrCodeModelDecodeFailed, "classifier artifact has no feature width")
	}
	switch a.Kind {
	case KindSVC:
		return newSVC(a)
	case KindLogistic:
		if len(a.Weights) != a.NFeatures {
			return nil, errors.New(errors.ErrCodeModelDecodeFailed, "logistic weights do not match feature width").
				WithDetail(fmt.Sprintf("weights=%d n_features=%d", len(a.Weights), a.NFeatures))
		}
		w := make([]float64, len(a.Weights))
		copy(w, a.Weights)
		return &logisticModel{weights: w, intercept: a.Intercept}, nil
	default:
		return nil, errors.New(errors.ErrCodeModelDecodeFailed, "unsupported classifier kind").WithDetail(a.Kind)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Support vector classifier with Platt calibration
// ─────────────────────────────────────────────────────────────────────────────

type svcModel struct {
	nFeatures int
	kernel    string
	gamma     float64
	sv        [][]int32
	coef      []float64
	intercept float64
	probA     float64
	probB     float64
}

func newSVC(a *Artifact) (*svcModel, error) {
	if len(a.SupportVectors) == 0 || len(a.SupportVectors) != len(a.DualCoef) {
		return nil, errors.New(errors.ErrCodeModelDecodeFailed, "support vectors do not match dual coefficients").
			WithDetail(fmt.Sprintf("support_vectors=%d dual_coef=%d", len(a.SupportVectors), len(a.DualCoef)))
	}
	kernel := a.Kernel
	if kernel == "" {
		kernel = KernelRBF
	}
	switch kernel {
	case KernelLinear:
	case KernelRBF:
		if a.Gamma <= 0 {
			return nil, errors.New(errors.ErrCodeModelDecodeFailed, "rbf kernel requires gamma > 0")
		}
	default:
		return nil, errors.New(errors.ErrCodeModelDecodeFailed, "unsupported kernel").WithDetail(kernel)
	}

	m := &svcModel{
		nFeatures: a.NFeatures,
		kernel:    kernel,
		gamma:     a.Gamma,
		sv:        make([][]int32, len(a.SupportVectors)),
		coef:      make([]float64, len(a.DualCoef)),
		intercept: a.Intercept,
		probA:     a.ProbA,
		probB:     a.ProbB,
	}
	copy(m.coef, a.DualCoef)
	for i, on := range a.SupportVectors {
		row := make([]int32, len(on))
		for j, idx := range on {
			if idx < 0 || idx >= a.NFeatures {
				return nil, errors.New(errors.ErrCodeModelDecodeFailed, "support vector index out of range").
					WithDetail(fmt.Sprintf("vector=%d index=%d", i, idx))
			}
			row[j] = int32(idx)
		}
		m.sv[i] = row
	}
	return m, nil
}

func (m *svcModel) NumFeatures() int { return m.nFeatures }

// decision returns the signed distance of x from the separating surface.
func (m *svcModel) decision(x []float32) float64 {
	var xx float64
	if m.kernel == KernelRBF {
		for _, v := range x {
			xx += float64(v) * float64(v)
		}
	}
	f := m.intercept
	for i, on := range m.sv {
		var dot float64
		for _, idx := range on {
			dot += float64(x[idx])
		}
		k := dot
		if m.kernel == KernelRBF {
			// |sv - x|^2 with a binary support vector.
			k = math.Exp(-m.gamma * (float64(len(on)) + xx - 2*dot))
		}
		f += m.coef[i] * k
	}
	return f
}

func (m *svcModel) PredictProba(ctx context.Context, features [][]float32) ([]float64, error) {
	out := make([]float64, len(features))
	for i, x := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(x) != m.nFeatures {
			return nil, widthError(i, len(x), m.nFeatures)
		}
		out[i] = plattSigmoid(m.decision(x), m.probA, m.probB)
	}
	return out, nil
}

// plattSigmoid computes 1 / (1 + exp(A*f + B)) without overflow.
func plattSigmoid(f, a, b float64) float64 {
	z := a*f + b
	if z >= 0 {
		e := math.Exp(-z)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(z))
}

// ─────────────────────────────────────────────────────────────────────────────
// Logistic model
// ─────────────────────────────────────────────────────────────────────────────

type logisticModel struct {
	weights   []float64
	intercept float64
}

func (m *logisticModel) NumFeatures() int { return len(m.weights) }

func (m *logisticModel) PredictProba(ctx context.Context, features [][]float32) ([]float64, error) {
	out := make([]float64, len(features))
	for i, x := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(x) != len(m.weights) {
			return nil, widthError(i, len(x), len(m.weights))
		}
		z := m.intercept
		for j, v := range x {
			if v != 0 {
				z += m.weights[j] * float64(v)
			}
		}
		out[i] = plattSigmoid(z, -1, 0)
	}
	return out, nil
}

func widthError(row, got, want int) error {
	return errors.New(errors.ErrCodeAIInputInvalid, "feature row has wrong width").
		WithDetail(fmt.Sprintf("row=%d width=%d expected=%d", row, got, want))
}

package classifier

import (
	"fmt"
	"math"

	"bugscope/cli/internal/features"
)

// Tier is a classifier tier: Single or Ensemble. The set is closed.
type Tier interface {
	// InputDim is the vector length every member expects.
	InputDim() int
	// Members is the number of models evaluated.
	Members() int
	isTier()
}

// Single is a tier backed by one model.
type Single struct {
	Model Model
}

// Ensemble is a tier whose prediction is the rounded mean of its members'.
type Ensemble struct {
	Models []Model
}

func (Single) isTier()   {}
func (Ensemble) isTier() {}

// InputDim returns the model's input width.
func (s Single) InputDim() int { return s.Model.InputDim() }

// Members returns 1.
func (Single) Members() int { return 1 }

// InputDim returns the first member's input width (NewEnsemble checks they agree).
func (e Ensemble) InputDim() int {
	if len(e.Models) == 0 {
		return 0
	}
	return e.Models[0].InputDim()
}

// Members returns the member count.
func (e Ensemble) Members() int { return len(e.Models) }

// NewEnsemble checks that models is non-empty and that all members share an input width.
func NewEnsemble(models ...Model) (Ensemble, error) {
	if len(models) == 0 {
		return Ensemble{}, fmt.Errorf("ensemble: %w", ErrNoModels)
	}
	dim := models[0].InputDim()
	for i, m := range models[1:] {
		if m.InputDim() != dim {
			return Ensemble{}, fmt.Errorf("ensemble member %d: %w: input_dim %d, member 0 has %d", i+1, features.ErrDimensionMismatch, m.InputDim(), dim)
		}
	}
	return Ensemble{Models: models}, nil
}

// TierResult is the output of one tier for one vector. A zero value means
// the tier is absent.
type TierResult struct {
	Present    bool    `json:"present"`
	Prediction int     `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Members    int     `json:"members,omitempty"`
}

// Bug reports whether the tier is present and predicted 1.
func (r TierResult) Bug() bool { return r.Present && r.Prediction == 1 }

// Evaluate runs tier t over v. A nil tier yields an absent result and no
// error. A vector whose length differs from the tier's InputDim fails with
// features.ErrDimensionMismatch.
//
// Ensemble prediction is round-half-up of the mean member prediction and its
// confidence is the mean member confidence.
func Evaluate(t Tier, v features.Vector) (TierResult, error) {
	if t == nil {
		return TierResult{}, nil
	}
	if err := v.CheckDim(t.InputDim()); err != nil {
		return TierResult{}, err
	}
	switch t := t.(type) {
	case Single:
		return evalSingle(t.Model, v.Values)
	case Ensemble:
		return evalEnsemble(t.Models, v.Values)
	default:
		return TierResult{}, fmt.Errorf("unknown tier type %T", t)
	}
}

func evalSingle(m Model, x []float64) (TierResult, error) {
	pred, err := m.Predict(x)
	if err != nil {
		return TierResult{}, err
	}
	conf, err := confidence(m, x)
	if err != nil {
		return TierResult{}, err
	}
	return TierResult{Present: true, Prediction: pred, Confidence: conf, Members: 1}, nil
}

func evalEnsemble(models []Model, x []float64) (TierResult, error) {
	if len(models) == 0 {
		return TierResult{}, fmt.Errorf("ensemble: %w", ErrNoModels)
	}
	var predSum, confSum float64
	for i, m := range models {
		r, err := evalSingle(m, x)
		if err != nil {
			return TierResult{}, fmt.Errorf("ensemble member %d: %w", i, err)
		}
		predSum += float64(r.Prediction)
		confSum += r.Confidence
	}
	k := float64(len(models))
	return TierResult{
		Present:    true,
		Prediction: roundHalfUp(predSum / k),
		Confidence: clamp01(confSum / k),
		Members:    len(models),
	}, nil
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

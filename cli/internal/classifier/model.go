// Package classifier evaluates already-fitted bug classifiers over feature
// vectors. Models are loaded from YAML files (see LoadTier) and are immutable
// once built, so a tier may be shared by concurrent detections.
package classifier

import (
	"errors"
	"fmt"

	"bugscope/cli/internal/features"
)

// FallbackConfidence is the confidence used for a model that cannot report
// class probabilities.
const FallbackConfidence = 0.5

var (
	// ErrProbaUnsupported is returned by PredictProba on models without probabilities.
	ErrProbaUnsupported = errors.New("model does not support class probabilities")
	// ErrNoModels is returned when an ensemble or model file has no members.
	ErrNoModels = errors.New("no models")
)

// Model is a fitted binary classifier. Label 1 means "buggy".
type Model interface {
	Predict(x []float64) (int, error)
	// PredictProba returns [P(0), P(1)] or ErrProbaUnsupported.
	PredictProba(x []float64) ([]float64, error)
	InputDim() int
}

func checkLen(x []float64, dim int) error {
	if len(x) != dim {
		return fmt.Errorf("%w: got %d values, model expects %d", features.ErrDimensionMismatch, len(x), dim)
	}
	return nil
}

// confidence is the largest class probability, or FallbackConfidence when
// the model has none.
func confidence(m Model, x []float64) (float64, error) {
	proba, err := m.PredictProba(x)
	if errors.Is(err, ErrProbaUnsupported) {
		return FallbackConfidence, nil
	}
	if err != nil {
		return 0, err
	}
	best := 0.0
	for _, p := range proba {
		best = max(best, p)
	}
	return clamp01(best), nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

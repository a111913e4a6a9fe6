package classifier

import (
	"fmt"
	"math"
)

// Logistic is a fitted logistic regression: P(1) = sigmoid(dot(w, x) + b).
type Logistic struct {
	Weights []float64
	Bias    float64
}

// InputDim returns len(Weights).
func (l *Logistic) InputDim() int { return len(l.Weights) }

func (l *Logistic) p1(x []float64) (float64, error) {
	if err := checkLen(x, len(l.Weights)); err != nil {
		return 0, err
	}
	return 1 / (1 + math.Exp(-dot(l.Weights, x, l.Bias))), nil
}

// Predict returns 1 when P(1) >= 0.5.
func (l *Logistic) Predict(x []float64) (int, error) {
	p, err := l.p1(x)
	if err != nil {
		return 0, err
	}
	if p >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

// PredictProba returns [1-P(1), P(1)].
func (l *Logistic) PredictProba(x []float64) ([]float64, error) {
	p, err := l.p1(x)
	if err != nil {
		return nil, err
	}
	return []float64{1 - p, p}, nil
}

// Perceptron is a linear threshold unit. It has no probabilities.
type Perceptron struct {
	Weights []float64
	Bias    float64
}

// InputDim returns len(Weights).
func (p *Perceptron) InputDim() int { return len(p.Weights) }

// Predict returns 1 when dot(w, x) + b > 0.
func (p *Perceptron) Predict(x []float64) (int, error) {
	if err := checkLen(x, len(p.Weights)); err != nil {
		return 0, err
	}
	if dot(p.Weights, x, p.Bias) > 0 {
		return 1, nil
	}
	return 0, nil
}

// PredictProba always returns ErrProbaUnsupported.
func (p *Perceptron) PredictProba([]float64) ([]float64, error) {
	return nil, ErrProbaUnsupported
}

func dot(w, x []float64, b float64) float64 {
	s := b
	for i := range w {
		s += w[i] * x[i]
	}
	return s
}

func validateLinear(kind string, w []float64) error {
	if len(w) == 0 {
		return fmt.Errorf("%s model has no weights", kind)
	}
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s weight %d is not finite", kind, i)
		}
	}
	return nil
}

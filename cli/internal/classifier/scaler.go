package classifier

import "fmt"

// Scaler standardizes inputs: (x - Mean) / Scale. A zero scale is treated as 1.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// Transform returns a new scaled slice.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if err := checkLen(x, len(s.Mean)); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, v := range x {
		sc := s.Scale[i]
		if sc == 0 {
			sc = 1
		}
		out[i] = (v - s.Mean[i]) / sc
	}
	return out, nil
}

func (s *Scaler) validate(dim int) error {
	if len(s.Mean) != dim || len(s.Scale) != dim {
		return fmt.Errorf("scaler has %d means and %d scales, model input_dim is %d", len(s.Mean), len(s.Scale), dim)
	}
	return nil
}

// scaled applies a Scaler in front of a Model.
type scaled struct {
	scaler *Scaler
	model  Model
}

// WithScaler wraps m so every input is standardized first. A nil scaler returns m.
func WithScaler(m Model, s *Scaler) Model {
	if s == nil {
		return m
	}
	return &scaled{scaler: s, model: m}
}

func (s *scaled) InputDim() int { return s.model.InputDim() }

func (s *scaled) Predict(x []float64) (int, error) {
	z, err := s.scaler.Transform(x)
	if err != nil {
		return 0, err
	}
	return s.model.Predict(z)
}

func (s *scaled) PredictProba(x []float64) ([]float64, error) {
	z, err := s.scaler.Transform(x)
	if err != nil {
		return nil, err
	}
	return s.model.PredictProba(z)
}

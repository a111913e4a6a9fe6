package classifier

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML layout of a tier.
//
//	name: improved
//	input_dim: 15
//	scaler: {mean: [...], scale: [...]}
//	models:
//	  - type: logistic      # logistic | perceptron | forest
//	    weights: [...]
//	    bias: -0.2
//	  - type: forest
//	    trees:
//	      - nodes:
//	          - {feature: 3, threshold: 1.5, left: 1, right: 2}
//	          - {value: [8, 2]}
//	          - {value: [1, 9]}
//
// One model gives a Single tier; more than one gives an Ensemble.
type File struct {
	Name     string      `yaml:"name"`
	InputDim int         `yaml:"input_dim"`
	Scaler   *ScalerFile `yaml:"scaler"`
	Models   []ModelFile `yaml:"models"`
}

// ScalerFile holds standardization parameters.
type ScalerFile struct {
	Mean  []float64 `yaml:"mean"`
	Scale []float64 `yaml:"scale"`
}

// ModelFile is one fitted model.
type ModelFile struct {
	Type    string     `yaml:"type"`
	Weights []float64  `yaml:"weights"`
	Bias    float64    `yaml:"bias"`
	Trees   []TreeFile `yaml:"trees"`
	// Scaler overrides the file-level scaler for this member.
	Scaler *ScalerFile `yaml:"scaler"`
}

// TreeFile is one decision tree.
type TreeFile struct {
	Nodes []NodeFile `yaml:"nodes"`
}

// NodeFile is one tree node; see Node.
type NodeFile struct {
	Feature   int       `yaml:"feature"`
	Threshold float64   `yaml:"threshold"`
	Left      int       `yaml:"left"`
	Right     int       `yaml:"right"`
	Value     []float64 `yaml:"value"`
}

// LoadTier reads and builds the tier at path.
func LoadTier(path string) (Tier, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read model file: %w", err)
	}
	t, name, err := ParseTier(data)
	if err != nil {
		return nil, "", fmt.Errorf("model file %s: %w", path, err)
	}
	if name == "" {
		name = path
	}
	return t, name, nil
}

// ParseTier decodes a YAML tier definition. Unknown keys are rejected.
func ParseTier(data []byte) (Tier, string, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, "", fmt.Errorf("parse yaml: %w", err)
	}
	t, err := f.Build()
	if err != nil {
		return nil, "", err
	}
	return t, f.Name, nil
}

// Build validates f and constructs its tier.
func (f *File) Build() (Tier, error) {
	if f.InputDim <= 0 {
		return nil, errors.New("input_dim must be > 0")
	}
	if len(f.Models) == 0 {
		return nil, ErrNoModels
	}
	models := make([]Model, 0, len(f.Models))
	for i, mf := range f.Models {
		m, err := mf.build(f.InputDim)
		if err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		sf := f.Scaler
		if mf.Scaler != nil {
			sf = mf.Scaler
		}
		if sf != nil {
			s := &Scaler{Mean: sf.Mean, Scale: sf.Scale}
			if err := s.validate(f.InputDim); err != nil {
				return nil, fmt.Errorf("model %d: %w", i, err)
			}
			m = WithScaler(m, s)
		}
		models = append(models, m)
	}
	if len(models) == 1 {
		return Single{Model: models[0]}, nil
	}
	return NewEnsemble(models...)
}

func (mf ModelFile) build(dim int) (Model, error) {
	switch mf.Type {
	case "logistic", "perceptron":
		if err := validateLinear(mf.Type, mf.Weights); err != nil {
			return nil, err
		}
		if len(mf.Weights) != dim {
			return nil, fmt.Errorf("%s has %d weights, input_dim is %d", mf.Type, len(mf.Weights), dim)
		}
		if mf.Type == "logistic" {
			return &Logistic{Weights: mf.Weights, Bias: mf.Bias}, nil
		}
		return &Perceptron{Weights: mf.Weights, Bias: mf.Bias}, nil
	case "forest":
		f := &Forest{Dim: dim, Trees: make([]Tree, 0, len(mf.Trees))}
		for _, tf := range mf.Trees {
			t := Tree{Nodes: make([]Node, 0, len(tf.Nodes))}
			for _, nf := range tf.Nodes {
				t.Nodes = append(t.Nodes, Node(nf))
			}
			f.Trees = append(f.Trees, t)
		}
		if err := f.validate(); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown model type %q (want logistic, perceptron or forest)", mf.Type)
	}
}

package classifier

import (
	"errors"
	"fmt"
)

// Node is one decision tree node. A node with a non-empty Value is a leaf
// holding class weights [w0, w1]; otherwise x[Feature] <= Threshold goes to
// Left, else Right (indices into the tree's node list).
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64
}

// Tree is a fitted decision tree; node 0 is the root.
type Tree struct {
	Nodes []Node
}

// Forest averages the leaf class distributions of its trees.
type Forest struct {
	Trees []Tree
	Dim   int
}

// InputDim returns the declared input width.
func (f *Forest) InputDim() int { return f.Dim }

// PredictProba returns the mean normalized leaf distribution over all trees.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if err := checkLen(x, f.Dim); err != nil {
		return nil, err
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("forest: %w", ErrNoModels)
	}
	sum := []float64{0, 0}
	for i := range f.Trees {
		leaf, err := f.Trees[i].leaf(x)
		if err != nil {
			return nil, fmt.Errorf("forest tree %d: %w", i, err)
		}
		total := leaf[0] + leaf[1]
		if total <= 0 {
			continue
		}
		sum[0] += leaf[0] / total
		sum[1] += leaf[1] / total
	}
	n := float64(len(f.Trees))
	return []float64{sum[0] / n, sum[1] / n}, nil
}

// Predict returns the class with the larger mean probability; ties go to 0.
func (f *Forest) Predict(x []float64) (int, error) {
	p, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if p[1] > p[0] {
		return 1, nil
	}
	return 0, nil
}

func (t *Tree) leaf(x []float64) ([]float64, error) {
	i := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if i < 0 || i >= len(t.Nodes) {
			return nil, fmt.Errorf("node index %d out of range", i)
		}
		n := t.Nodes[i]
		if len(n.Value) > 0 {
			return n.Value, nil
		}
		if n.Feature < 0 || n.Feature >= len(x) {
			return nil, fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, len(x))
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return nil, errors.New("tree has a cycle")
}

func (f *Forest) validate() error {
	if f.Dim <= 0 {
		return errors.New("forest needs input_dim > 0")
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest: %w", ErrNoModels)
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("forest tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if len(n.Value) > 0 {
				if len(n.Value) != 2 {
					return fmt.Errorf("forest tree %d node %d: leaf needs 2 class weights, got %d", ti, ni, len(n.Value))
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= f.Dim {
				return fmt.Errorf("forest tree %d node %d: feature %d outside input_dim %d", ti, ni, n.Feature, f.Dim)
			}
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("forest tree %d node %d: children must follow the node", ti, ni)
			}
		}
	}
	return nil
}

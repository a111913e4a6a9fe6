// Package features turns a snippet into the fixed-shape numeric vectors the
// classifier tiers consume: syntax counts, syntax-tree semantics and
// complexity metrics, optionally combined with an embedding.
//
// Every extractor is total. Empty or malformed input still produces a vector
// of the declared length; only a mismatch against a consumer's declared input
// dimension is an error.
package features

import (
	"errors"
	"fmt"
)

// Group sizes and vector shapes.
const (
	GroupDims       = 5
	BaselineDims    = 2 * GroupDims
	HandcraftedDims = 3 * GroupDims
	// ReducedEmbeddingDims is how many leading embedding values Reduce keeps.
	ReducedEmbeddingDims = 15
)

// ErrDimensionMismatch is returned when a vector does not have the length a
// model declared.
var ErrDimensionMismatch = errors.New("feature dimension mismatch")

// Shape names the layout of a Vector.
type Shape string

const (
	ShapeBaseline Shape = "baseline"
	ShapeImproved Shape = "improved"
)

// Vector is an ordered feature vector with its declared shape.
type Vector struct {
	Shape  Shape
	Values []float64
}

// Len returns the number of values.
func (v Vector) Len() int { return len(v.Values) }

// CheckDim returns ErrDimensionMismatch (wrapped) when v does not have want values.
func (v Vector) CheckDim(want int) error {
	if len(v.Values) != want {
		return fmt.Errorf("%w: %s vector has %d values, model expects %d", ErrDimensionMismatch, v.Shape, len(v.Values), want)
	}
	return nil
}

// All returns the 15 handcrafted values: syntax, semantic, complexity.
func All(code string) Vector {
	out := make([]float64, 0, HandcraftedDims)
	syn := Syntax(code)
	sem := Semantic(code)
	cx := Complexity(code)
	out = append(out, syn[:]...)
	out = append(out, sem[:]...)
	out = append(out, cx[:]...)
	return Vector{Shape: ShapeImproved, Values: out}
}

// Baseline returns the 10 values the baseline tier consumes: syntax and semantic.
func Baseline(code string) Vector {
	out := make([]float64, 0, BaselineDims)
	syn := Syntax(code)
	sem := Semantic(code)
	out = append(out, syn[:]...)
	out = append(out, sem[:]...)
	return Vector{Shape: ShapeBaseline, Values: out}
}
